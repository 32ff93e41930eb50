package core

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const maxCourseImportSize = 8 * 1024 * 1024

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, tokens *TokenIssuer, auth *AuthService, courses CourseRepository, cache *CatalogCache) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	r.Use(CORSMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime_s": int(time.Since(startedAt).Seconds())})
	})

	registerAuthRoutes(r.Group("/admin"), tokens, auth, NamespaceAdmin)
	registerAuthRoutes(r.Group("/user"), tokens, auth, NamespaceUser)

	course := r.Group("/course")
	{
		// ----- admin routes -----

		course.POST("", AdminRequired(tokens), func(c *gin.Context) {
			var req struct {
				Title       string  `json:"title"`
				Description string  `json:"description"`
				ImageLink   string  `json:"imageLink"`
				Price       float64 `json:"price"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.Title == "" || req.Description == "" || req.ImageLink == "" || req.Price <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "All fields are required")
				return
			}

			ctx := c.Request.Context()
			crs := &Course{
				Title:       req.Title,
				Description: req.Description,
				ImageLink:   req.ImageLink,
				Price:       req.Price,
				AdminID:     CurrentClaims(c).AdminID,
			}
			if err := courses.Create(ctx, crs); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create course")
				return
			}
			cache.Invalidate(ctx)
			c.JSON(http.StatusCreated, gin.H{"message": "Course created successfully", "course": crs})
		})

		course.PUT("/:courseId", AdminRequired(tokens), func(c *gin.Context) {
			var req struct {
				Title       string  `json:"title"`
				Description string  `json:"description"`
				ImageLink   string  `json:"imageLink"`
				Price       float64 `json:"price"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			ctx := c.Request.Context()
			crs, err := courses.Update(ctx, c.Param("courseId"), CurrentClaims(c).AdminID, CourseUpdate{
				Title:       req.Title,
				Description: req.Description,
				ImageLink:   req.ImageLink,
				Price:       req.Price,
			})
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Course not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update course")
				return
			}
			cache.Invalidate(ctx)
			c.JSON(http.StatusOK, gin.H{"message": "Course updated successfully", "course": crs})
		})

		course.DELETE("/:courseId", AdminRequired(tokens), func(c *gin.Context) {
			ctx := c.Request.Context()
			err := courses.Delete(ctx, c.Param("courseId"), CurrentClaims(c).AdminID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Course not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete course")
				return
			}
			cache.Invalidate(ctx)
			c.JSON(http.StatusOK, gin.H{"message": "Course deleted successfully"})
		})

		course.GET("/admin/all", AdminRequired(tokens), func(c *gin.Context) {
			ctx := c.Request.Context()
			items, err := courses.ListAll(ctx)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch courses")
				return
			}
			out, err := withPurchasers(c, courses, items)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch purchasers")
				return
			}
			c.JSON(http.StatusOK, out)
		})

		course.GET("/admin/my-courses", AdminRequired(tokens), func(c *gin.Context) {
			ctx := c.Request.Context()
			items, err := courses.ListByAdmin(ctx, CurrentClaims(c).AdminID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch courses")
				return
			}
			out, err := withPurchasers(c, courses, items)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch purchasers")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Your courses retrieved successfully", "courses": out})
		})

		course.POST("/admin/import", AdminRequired(tokens), func(c *gin.Context) {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "upload a zip in the file field")
				return
			}
			if fileHeader.Size > maxCourseImportSize {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file too large (8MB max)")
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_COURSE_PACKAGE", "failed to open upload")
				return
			}
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxCourseImportSize+1024))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to read upload")
				return
			}

			inputs, err := ParseCourseArchive(data)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_COURSE_PACKAGE", err.Error())
				return
			}

			ctx := c.Request.Context()
			adminID := CurrentClaims(c).AdminID
			created := make([]Course, 0, len(inputs))
			for _, in := range inputs {
				crs := &Course{
					Title:       in.Title,
					Description: in.Description,
					ImageLink:   in.ImageLink,
					Price:       in.Price,
					AdminID:     adminID,
				}
				if err := courses.Create(ctx, crs); err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to save courses")
					return
				}
				created = append(created, *crs)
			}
			cache.Invalidate(ctx)
			c.JSON(http.StatusCreated, gin.H{
				"message": "Courses imported successfully",
				"count":   len(created),
				"courses": created,
			})
		})

		// ----- public routes -----

		course.GET("", func(c *gin.Context) {
			ctx := c.Request.Context()
			if cached, ok := cache.Get(ctx); ok {
				c.JSON(http.StatusOK, cached)
				return
			}
			items, err := courses.ListAll(ctx)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch courses")
				return
			}
			cache.Set(ctx, items)
			c.JSON(http.StatusOK, items)
		})

		course.GET("/:courseId", func(c *gin.Context) {
			crs, err := courses.FindByID(c.Request.Context(), c.Param("courseId"))
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Course not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch course")
				return
			}
			c.JSON(http.StatusOK, crs)
		})

		// ----- user routes -----

		course.POST("/:courseId/purchase", UserRequired(tokens), func(c *gin.Context) {
			ctx := c.Request.Context()
			courseID := c.Param("courseId")

			crs, err := courses.FindByID(ctx, courseID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Course not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch course")
				return
			}

			purchase, err := courses.Purchase(ctx, CurrentClaims(c).UserID, courseID)
			if err != nil {
				if errors.Is(err, ErrAlreadyPurchased) {
					respondError(c, http.StatusBadRequest, "ALREADY_PURCHASED", "Course already purchased")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to record purchase")
				return
			}
			purchase.Course = crs
			c.JSON(http.StatusCreated, gin.H{"message": "Course purchased successfully", "purchase": purchase})
		})

		course.GET("/user/purchased", UserRequired(tokens), func(c *gin.Context) {
			items, err := courses.ListPurchasedByUser(c.Request.Context(), CurrentClaims(c).UserID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch purchases")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"message":          "Purchased courses retrieved successfully",
				"purchasedCourses": items,
			})
		})

		course.GET("/:courseId/purchased", UserRequired(tokens), func(c *gin.Context) {
			purchase, err := courses.IsPurchased(c.Request.Context(), CurrentClaims(c).UserID, c.Param("courseId"))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to check purchase")
				return
			}
			c.JSON(http.StatusOK, gin.H{"isPurchased": purchase != nil, "purchase": purchase})
		})
	}

	return r
}

// registerAuthRoutes wires the identical register/login/google-login/delete
// flows for one principal namespace.
func registerAuthRoutes(g *gin.RouterGroup, tokens *TokenIssuer, auth *AuthService, ns Namespace) {
	label, payloadKey := "User", "user"
	deleteGate := UserRequired(tokens)
	if ns == NamespaceAdmin {
		label, payloadKey = "Admin", "admin"
		deleteGate = AdminRequired(tokens)
	}

	g.POST("/register", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name, email, password are required")
			return
		}

		p, token, err := auth.Register(c.Request.Context(), ns, req.Name, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrDuplicateIdentity) {
				respondError(c, http.StatusBadRequest, "DUPLICATE_IDENTITY", label+" already exists")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "registration failed")
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":  label + " created successfully",
			"token":    token,
			payloadKey: p,
		})
	})

	g.POST("/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		p, token, err := auth.Login(c.Request.Context(), ns, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Login successful",
			"token":    token,
			payloadKey: p,
		})
	})

	g.POST("/google-login", func(c *gin.Context) {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "token is required")
			return
		}

		p, token, err := auth.GoogleLogin(c.Request.Context(), ns, req.Token)
		if err != nil {
			if errors.Is(err, ErrAssertionInvalid) {
				respondError(c, http.StatusUnauthorized, "ASSERTION_INVALID", "Google login failed")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Google login successful",
			"token":    token,
			payloadKey: p,
		})
	})

	g.DELETE("/delete-account", deleteGate, func(c *gin.Context) {
		err := auth.DeleteAccount(c.Request.Context(), CurrentClaims(c))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete account")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
	})
}

// withPurchasers decorates courses with the users who bought them.
func withPurchasers(c *gin.Context, courses CourseRepository, items []Course) ([]gin.H, error) {
	out := make([]gin.H, 0, len(items))
	for _, crs := range items {
		buyers, err := courses.ListPurchasers(c.Request.Context(), crs.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, gin.H{
			"id":          crs.ID,
			"title":       crs.Title,
			"description": crs.Description,
			"imageLink":   crs.ImageLink,
			"price":       crs.Price,
			"adminId":     crs.AdminID,
			"createdAt":   crs.CreatedAt,
			"admin":       crs.Admin,
			"purchasedBy": buyers,
		})
	}
	return out, nil
}
