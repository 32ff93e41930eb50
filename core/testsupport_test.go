package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memPrincipalRepository is an in-memory PrincipalRepository for tests.
// When courses is set, Delete cascades through it like the SQL version.
type memPrincipalRepository struct {
	mu      sync.Mutex
	seq     int
	byNS    map[Namespace]map[string]*Principal
	courses *memCourseRepository
}

func newMemPrincipalRepository() *memPrincipalRepository {
	return &memPrincipalRepository{
		byNS: map[Namespace]map[string]*Principal{
			NamespaceAdmin: {},
			NamespaceUser:  {},
		},
	}
}

func (r *memPrincipalRepository) FindByEmail(_ context.Context, ns Namespace, email string) (*Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.byNS[ns] {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPrincipalRepository) FindByGoogleID(_ context.Context, ns Namespace, googleID string) (*Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byNS[ns] {
		if p.GoogleID != "" && p.GoogleID == googleID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPrincipalRepository) FindByID(_ context.Context, ns Namespace, id string) (*Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byNS[ns][id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPrincipalRepository) Create(_ context.Context, ns Namespace, p *Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	for _, existing := range r.byNS[ns] {
		if existing.Email == p.Email {
			return ErrDuplicateIdentity
		}
		if p.GoogleID != "" && existing.GoogleID == p.GoogleID {
			return ErrDuplicateIdentity
		}
	}
	r.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("%s-%d", ns, r.seq)
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.byNS[ns][p.ID] = &cp
	return nil
}

func (r *memPrincipalRepository) AttachGoogleID(_ context.Context, ns Namespace, id, googleID, profilePic string) (*Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byNS[ns][id]
	if !ok {
		return nil, ErrNotFound
	}
	p.GoogleID = googleID
	if profilePic != "" {
		p.ProfilePic = profilePic
	}
	cp := *p
	return &cp, nil
}

func (r *memPrincipalRepository) Delete(_ context.Context, ns Namespace, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNS[ns][id]; !ok {
		return ErrNotFound
	}
	if r.courses != nil {
		if ns == NamespaceUser {
			r.courses.removePurchasesByUser(id)
		} else {
			r.courses.removeCoursesByAdmin(id)
		}
	}
	delete(r.byNS[ns], id)
	return nil
}

func (r *memPrincipalRepository) HasAny(_ context.Context, ns Namespace) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byNS[ns]) > 0, nil
}

// memCourseRepository is an in-memory CourseRepository for tests.
type memCourseRepository struct {
	mu        sync.Mutex
	seq       int
	courses   map[string]*Course
	purchases []Purchase
}

func newMemCourseRepository() *memCourseRepository {
	return &memCourseRepository{courses: map[string]*Course{}}
}

func (r *memCourseRepository) Create(_ context.Context, c *Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("course-%d", r.seq)
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *memCourseRepository) Update(_ context.Context, id, adminID string, upd CourseUpdate) (*Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok || c.AdminID != adminID {
		return nil, ErrNotFound
	}
	if upd.Title != "" {
		c.Title = upd.Title
	}
	if upd.Description != "" {
		c.Description = upd.Description
	}
	if upd.ImageLink != "" {
		c.ImageLink = upd.ImageLink
	}
	if upd.Price > 0 {
		c.Price = upd.Price
	}
	cp := *c
	return &cp, nil
}

func (r *memCourseRepository) Delete(_ context.Context, id, adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok || c.AdminID != adminID {
		return ErrNotFound
	}
	r.dropPurchases(func(p Purchase) bool { return p.CourseID == id })
	delete(r.courses, id)
	return nil
}

func (r *memCourseRepository) FindByID(_ context.Context, id string) (*Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCourseRepository) ListAll(_ context.Context) ([]Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]Course, 0, len(r.courses))
	for _, c := range r.courses {
		items = append(items, *c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memCourseRepository) ListByAdmin(_ context.Context, adminID string) ([]Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]Course, 0)
	for _, c := range r.courses {
		if c.AdminID == adminID {
			items = append(items, *c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memCourseRepository) Purchase(_ context.Context, userID, courseID string) (*Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID == userID && p.CourseID == courseID {
			return nil, ErrAlreadyPurchased
		}
	}
	p := Purchase{UserID: userID, CourseID: courseID, PurchasedAt: time.Now()}
	r.purchases = append(r.purchases, p)
	cp := p
	return &cp, nil
}

func (r *memCourseRepository) ListPurchasedByUser(_ context.Context, userID string) ([]Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]Purchase, 0)
	for _, p := range r.purchases {
		if p.UserID == userID {
			if c, ok := r.courses[p.CourseID]; ok {
				cp := *c
				p.Course = &cp
			}
			items = append(items, p)
		}
	}
	return items, nil
}

func (r *memCourseRepository) IsPurchased(_ context.Context, userID, courseID string) (*Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID == userID && p.CourseID == courseID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCourseRepository) ListPurchasers(_ context.Context, courseID string) ([]PrincipalSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]PrincipalSummary, 0)
	for _, p := range r.purchases {
		if p.CourseID == courseID {
			items = append(items, PrincipalSummary{ID: p.UserID})
		}
	}
	return items, nil
}

func (r *memCourseRepository) removePurchasesByUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropPurchases(func(p Purchase) bool { return p.UserID == userID })
}

func (r *memCourseRepository) removeCoursesByAdmin(adminID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.courses {
		if c.AdminID == adminID {
			r.dropPurchases(func(p Purchase) bool { return p.CourseID == id })
			delete(r.courses, id)
		}
	}
}

// dropPurchases assumes the caller holds r.mu.
func (r *memCourseRepository) dropPurchases(match func(Purchase) bool) {
	kept := r.purchases[:0]
	for _, p := range r.purchases {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	r.purchases = kept
}

// fakeAssertionVerifier resolves raw tokens from a fixed table; anything
// else fails like a bad signature or audience mismatch would.
type fakeAssertionVerifier struct {
	identities map[string]ExternalIdentity
}

func (f *fakeAssertionVerifier) VerifyAssertion(_ context.Context, rawToken string) (ExternalIdentity, error) {
	if ident, ok := f.identities[rawToken]; ok {
		return ident, nil
	}
	return ExternalIdentity{}, fmt.Errorf("%w: assertion rejected", ErrAssertionInvalid)
}
