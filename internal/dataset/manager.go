// Package dataset manages uploaded export datasets on disk: zip extraction
// with structure validation, a manifest.json per dataset, listing, deletion,
// and late attachment of subscriber_details.csv.
package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/subscriber-analytics/internal/loader"
)

const manifestFile = "manifest.json"

// requiredFiles and requiredDirs define a structurally valid export.
// The subscriber list is pattern-matched separately (email_list*.csv).
var (
	requiredFiles = []string{"posts.csv"}
	requiredDirs  = []string{"posts"}
)

// ErrNotFound is returned when a dataset id does not exist on disk.
var ErrNotFound = errors.New("dataset not found")

// ValidationError carries the individual structure problems of a rejected
// upload so the API can report them all at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid export structure: " + strings.Join(e.Problems, "; ")
}

// Stats summarizes a dataset for listings without loading the full tables.
type Stats struct {
	SubscriberCount      int    `json:"subscriber_count"`
	PostCount            int    `json:"post_count"`
	HasSubscriberDetails bool   `json:"has_subscriber_details"`
	EmailListFile        string `json:"email_list_file,omitempty"`
}

// Manifest is the per-dataset metadata file written at upload time.
type Manifest struct {
	ID             string    `json:"id"`
	Label          string    `json:"label,omitempty"`
	SourceFilename string    `json:"source_filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Stats          Stats     `json:"stats"`
}

// Manager owns the on-disk dataset store rooted at dataDir.
type Manager struct {
	dataDir string
}

// NewManager creates the data directory if needed and returns a Manager
// over it.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Manager{dataDir: dataDir}, nil
}

// Path returns the on-disk directory for a dataset id, or ErrNotFound.
func (m *Manager) Path(id string) (string, error) {
	// Reject ids that could escape the data directory.
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", ErrNotFound
	}
	dir := filepath.Join(m.dataDir, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", ErrNotFound
	}
	return dir, nil
}

// ProcessUpload extracts and validates an uploaded export zip, writes its
// manifest, and returns it. A structurally invalid export is cleaned up and
// reported as a *ValidationError.
func (m *Manager) ProcessUpload(zipData []byte, sourceFilename, label string) (*Manifest, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.dataDir, id)

	if err := extractExport(zipData, dir); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if problems := validateStructure(dir); len(problems) > 0 {
		os.RemoveAll(dir)
		return nil, &ValidationError{Problems: problems}
	}

	manifest := &Manifest{
		ID:             id,
		Label:          label,
		SourceFilename: sourceFilename,
		UploadedAt:     time.Now().UTC(),
		Stats:          computeStats(dir),
	}
	if err := writeManifest(dir, manifest); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return manifest, nil
}

// Get loads one dataset's manifest, or ErrNotFound.
func (m *Manager) Get(id string) (*Manifest, error) {
	dir, err := m.Path(id)
	if err != nil {
		return nil, err
	}
	manifest, err := readManifest(dir)
	if err != nil {
		// A dataset dropped into the data dir by hand has no manifest;
		// synthesize one so it still lists.
		if problems := validateStructure(dir); len(problems) == 0 {
			return &Manifest{ID: id, SourceFilename: "unknown", Stats: computeStats(dir)}, nil
		}
		return nil, err
	}
	return manifest, nil
}

// List returns every dataset's manifest, newest upload first.
func (m *Manager) List() ([]*Manifest, error) {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := m.Get(entry.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, manifest)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].UploadedAt.After(manifests[j].UploadedAt)
	})
	return manifests, nil
}

// Delete removes a dataset and everything under it.
func (m *Manager) Delete(id string) error {
	dir, err := m.Path(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	return nil
}

// AttachSubscriberDetails validates and writes subscriber_details.csv into
// an existing dataset, updating its manifest stats.
func (m *Manager) AttachSubscriberDetails(id string, csvData []byte) (*Manifest, error) {
	dir, err := m.Path(id)
	if err != nil {
		return nil, err
	}

	headerLine, _, _ := strings.Cut(string(csvData), "\n")
	for _, col := range []string{"Email", "Type", "Emails received (6mo)"} {
		if !strings.Contains(headerLine, col) {
			return nil, fmt.Errorf("subscriber details missing expected column %q", col)
		}
	}

	path := filepath.Join(dir, "subscriber_details.csv")
	if err := os.WriteFile(path, csvData, 0o644); err != nil {
		return nil, fmt.Errorf("write subscriber details: %w", err)
	}

	manifest, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	manifest.Stats = computeStats(dir)
	if err := writeManifest(dir, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// extractExport unpacks a zip into dir. Exports often wrap everything in a
// single top-level folder; that layer is stripped so the data files land at
// the dataset root.
func extractExport(zipData []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return fmt.Errorf("open export zip: %w", err)
	}

	prefix := commonRootDir(zr.File)
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" {
			continue
		}

		target := filepath.Join(dir, filepath.FromSlash(name))
		// Zip-slip guard: every entry must resolve inside dir.
		if rel, err := filepath.Rel(dir, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("export zip entry %q escapes dataset directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract export: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract export: %w", err)
		}
		if err := writeZipEntry(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// commonRootDir returns "root/" when every entry lives under one top-level
// directory, else "".
func commonRootDir(files []*zip.File) string {
	roots := make(map[string]struct{})
	for _, f := range files {
		top, rest, found := strings.Cut(f.Name, "/")
		if !found || rest == "" && !f.FileInfo().IsDir() {
			return ""
		}
		// Relative traversal components are never a real wrapper folder;
		// leave them for the zip-slip guard to reject.
		if top == "" || top == "." || top == ".." {
			return ""
		}
		roots[top] = struct{}{}
	}
	if len(roots) != 1 {
		return ""
	}
	for root := range roots {
		return root + "/"
	}
	return ""
}

func validateStructure(dir string) []string {
	var problems []string
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			problems = append(problems, "missing required file: "+name)
		}
	}
	if loader.FindEmailListFile(dir) == "" {
		problems = append(problems, "missing required file matching: email_list*.csv")
	}
	for _, name := range requiredDirs {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.IsDir() {
			problems = append(problems, "missing required directory: "+name)
		}
	}

	postsDir := filepath.Join(dir, "posts")
	if info, err := os.Stat(postsDir); err == nil && info.IsDir() {
		opens, _ := filepath.Glob(filepath.Join(postsDir, "*.opens.csv"))
		delivers, _ := filepath.Glob(filepath.Join(postsDir, "*.delivers.csv"))
		if len(opens) == 0 && len(delivers) == 0 {
			problems = append(problems, "posts directory contains no engagement data")
		}
	}
	return problems
}

// computeStats counts rows without fully decoding the tables.
func computeStats(dir string) Stats {
	stats := Stats{}
	if path := loader.FindEmailListFile(dir); path != "" {
		stats.EmailListFile = filepath.Base(path)
		stats.SubscriberCount = countCSVRows(path)
	}
	stats.PostCount = countCSVRows(filepath.Join(dir, "posts.csv"))
	if _, err := os.Stat(filepath.Join(dir, "subscriber_details.csv")); err == nil {
		stats.HasSubscriberDetails = true
	}
	return stats
}

// countCSVRows returns data rows (header excluded), 0 on any error.
func countCSVRows(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	lines := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines == 0 {
		return 0
	}
	return lines - 1
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
