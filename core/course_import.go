package core

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxImportEntries   = 200
	maxImportTotalSize = 8 * 1024 * 1024
	maxImportFileSize  = 1 * 1024 * 1024
)

// CourseImportInput is one course parsed from a bulk-import manifest.
type CourseImportInput struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	ImageLink   string  `yaml:"image_link"`
	Price       float64 `yaml:"price"`
}

// ParseCourseArchive converts a zip bulk-import package into course
// inputs. Expected layout:
//
//	courses.yaml (required) — {courses: [{title, description, image_link, price}]}
//
// The manifest may sit at the archive root or under a single top-level
// folder. Other files in the archive are ignored.
func ParseCourseArchive(data []byte) ([]CourseImportInput, error) {
	if len(data) == 0 {
		return nil, errors.New("archive is empty")
	}
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04}) {
		return nil, errors.New("only zip archives are supported")
	}

	files := map[string][]byte{}
	if err := collectFromZip(data, files); err != nil {
		return nil, err
	}

	manifest, ok := files["courses.yaml"]
	if !ok {
		// Accept a single wrapping folder (name irrelevant).
		for name, content := range files {
			if path.Base(name) == "courses.yaml" && strings.Count(name, "/") == 1 {
				manifest = content
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, errors.New("courses.yaml not found in archive")
	}

	var doc struct {
		Courses []CourseImportInput `yaml:"courses"`
	}
	if err := yaml.Unmarshal(manifest, &doc); err != nil {
		return nil, fmt.Errorf("invalid courses.yaml: %w", err)
	}
	if len(doc.Courses) == 0 {
		return nil, errors.New("courses.yaml lists no courses")
	}

	for i := range doc.Courses {
		in := &doc.Courses[i]
		in.Title = strings.TrimSpace(in.Title)
		in.Description = strings.TrimSpace(in.Description)
		in.ImageLink = strings.TrimSpace(in.ImageLink)
		if in.Title == "" || in.Description == "" || in.ImageLink == "" {
			return nil, fmt.Errorf("course %d: title, description, image_link are required", i+1)
		}
		if in.Price <= 0 {
			return nil, fmt.Errorf("course %d (%s): price must be positive", i+1, in.Title)
		}
	}

	return doc.Courses, nil
}

func collectFromZip(data []byte, files map[string][]byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.New("failed to read zip archive")
	}
	if len(zr.File) > maxImportEntries {
		return fmt.Errorf("too many archive entries (max %d)", maxImportEntries)
	}

	var total int64
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if name == "." || strings.HasPrefix(name, "..") || path.IsAbs(name) {
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if f.UncompressedSize64 > maxImportFileSize {
			return fmt.Errorf("%s exceeds the per-file size limit", name)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s", name)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxImportFileSize+1))
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s", name)
		}
		total += int64(len(content))
		if total > maxImportTotalSize {
			return errors.New("archive too large")
		}
		files[name] = content
	}
	return nil
}
