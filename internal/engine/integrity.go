package engine

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// reportFilePrefix names persisted integrity reports; the embedded date is
// how the once-per-day startup check detects an earlier run.
const reportFilePrefix = "receipt_integrity_"

// IntegrityOptions holds the paths a ReceiptIntegrityService operates on.
type IntegrityOptions struct {
	// DatabasePath is the live database file whose rows are the expected set.
	DatabasePath string

	// ReceiptDir is the root of the live receipt file store.
	ReceiptDir string

	// ReportDir receives timestamped report files.
	ReportDir string

	// BaselinePath is the persisted checksum baseline file.
	BaselinePath string
}

// ReceiptIntegrityService detects drift between the receipt files the
// database believes exist and what is actually on disk.
type ReceiptIntegrityService struct {
	opts      IntegrityOptions
	inspector DatabaseInspector
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewReceiptIntegrityService creates a ReceiptIntegrityService and ensures
// its report directory exists.
func NewReceiptIntegrityService(opts IntegrityOptions, inspector DatabaseInspector, logger Logger, clock Clock, idgen IDGenerator) (*ReceiptIntegrityService, error) {
	if err := os.MkdirAll(opts.ReportDir, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &ReceiptIntegrityService{
		opts:      opts,
		inspector: inspector,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}, nil
}

// ChecksumMismatch is one file whose content drifted from the baseline.
type ChecksumMismatch struct {
	ReceiptPath      string `json:"receipt_path"`
	PreviousChecksum string `json:"previous_checksum"`
	CurrentChecksum  string `json:"current_checksum"`
}

// ReportSummary holds the counts of one audit run.
type ReportSummary struct {
	LinkedReceiptRecords int `json:"linked_receipt_records"`
	FilesOnDisk          int `json:"files_on_disk"`
	MissingLinkedFiles   int `json:"missing_linked_files"`
	OrphanFiles          int `json:"orphan_files"`
	ChecksumMismatches   int `json:"checksum_mismatches"`
}

// IntegrityReport is the immutable record of one audit run. Reports are
// append-only; the baseline is the only mutable comparison point.
type IntegrityReport struct {
	ReportID           string             `json:"report_id"`
	Timestamp          time.Time          `json:"timestamp"`
	Summary            ReportSummary      `json:"summary"`
	MissingLinkedFiles []LinkedReceipt    `json:"missing_linked_files"`
	OrphanFiles        []string           `json:"orphan_files"`
	ChecksumMismatches []ChecksumMismatch `json:"checksum_mismatches"`
}

// baseline is the persisted last-known-good checksum per receipt file.
type baseline struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Checksums map[string]string `json:"checksums"`
}

// Run executes one integrity audit: missing linked files, orphan files, and
// checksum drift against the previous baseline. Report persistence and
// baseline update are independent toggles so ad-hoc audits can inspect
// without mutating anything.
func (s *ReceiptIntegrityService) Run(updateBaseline, saveReport bool) (*IntegrityReport, error) {
	linked, err := s.inspector.LinkedReceipts(s.opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("querying linked receipts: %w", err)
	}
	linkedPaths := make(map[string]struct{}, len(linked))
	for _, rec := range linked {
		linkedPaths[rec.ReceiptPath] = struct{}{}
	}

	current, err := s.walkReceiptStore()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{
		ReportID:  s.idgen.New(),
		Timestamp: s.clock.Now(),
	}

	for _, rec := range linked {
		if _, ok := current[rec.ReceiptPath]; !ok {
			report.MissingLinkedFiles = append(report.MissingLinkedFiles, rec)
		}
	}

	for rel := range current {
		if _, ok := linkedPaths[rel]; !ok {
			report.OrphanFiles = append(report.OrphanFiles, rel)
		}
	}
	sort.Strings(report.OrphanFiles)

	// The first audit has no baseline, so no mismatch is possible then.
	prev := s.loadBaseline()
	for rel, sum := range current {
		if prevSum, ok := prev.Checksums[rel]; ok && prevSum != sum {
			report.ChecksumMismatches = append(report.ChecksumMismatches, ChecksumMismatch{
				ReceiptPath:      rel,
				PreviousChecksum: prevSum,
				CurrentChecksum:  sum,
			})
		}
	}
	sort.Slice(report.ChecksumMismatches, func(i, j int) bool {
		return report.ChecksumMismatches[i].ReceiptPath < report.ChecksumMismatches[j].ReceiptPath
	})

	report.Summary = ReportSummary{
		LinkedReceiptRecords: len(linked),
		FilesOnDisk:          len(current),
		MissingLinkedFiles:   len(report.MissingLinkedFiles),
		OrphanFiles:          len(report.OrphanFiles),
		ChecksumMismatches:   len(report.ChecksumMismatches),
	}

	if saveReport {
		if err := s.saveReport(report); err != nil {
			return nil, err
		}
	}
	if updateBaseline {
		if err := s.writeBaseline(baseline{UpdatedAt: report.Timestamp, Checksums: current}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("receipt integrity check completed",
		"missing", report.Summary.MissingLinkedFiles,
		"orphan", report.Summary.OrphanFiles,
		"checksum_mismatch", report.Summary.ChecksumMismatches)
	return report, nil
}

// UpdateBaseline recomputes the baseline from the current receipt store
// without persisting a report. Called after a successful full restore, when
// the store has been legitimately replaced wholesale.
func (s *ReceiptIntegrityService) UpdateBaseline() error {
	current, err := s.walkReceiptStore()
	if err != nil {
		return err
	}
	return s.writeBaseline(baseline{UpdatedAt: s.clock.Now(), Checksums: current})
}

// AutoCheckOnStart runs one audit per calendar day: a report file already
// stamped with today's date suppresses the run.
func (s *ReceiptIntegrityService) AutoCheckOnStart() error {
	todayPrefix := reportFilePrefix + s.clock.Now().Format("2006-01-02")

	entries, err := os.ReadDir(s.opts.ReportDir)
	if err != nil {
		return fmt.Errorf("reading report directory: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), todayPrefix) {
			s.logger.Info("integrity report already exists for today")
			return nil
		}
	}

	s.logger.Info("running startup receipt integrity check")
	_, err = s.Run(true, true)
	return err
}

// ReportListing summarizes one persisted report for admin tooling.
type ReportListing struct {
	Filename           string    `json:"filename"`
	Timestamp          time.Time `json:"timestamp"`
	MissingLinkedFiles int       `json:"missing_linked_files"`
	OrphanFiles        int       `json:"orphan_files"`
	ChecksumMismatches int       `json:"checksum_mismatches"`
}

// ListReports returns the newest persisted reports, newest first.
func (s *ReceiptIntegrityService) ListReports(limit int) ([]ReportListing, error) {
	entries, err := os.ReadDir(s.opts.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("reading report directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), reportFilePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	listings := make([]ReportListing, 0, len(names))
	for _, name := range names {
		listing := ReportListing{Filename: name}
		data, err := os.ReadFile(filepath.Join(s.opts.ReportDir, name))
		if err == nil {
			var report IntegrityReport
			if json.Unmarshal(data, &report) == nil {
				listing.Timestamp = report.Timestamp
				listing.MissingLinkedFiles = report.Summary.MissingLinkedFiles
				listing.OrphanFiles = report.Summary.OrphanFiles
				listing.ChecksumMismatches = report.Summary.ChecksumMismatches
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// walkReceiptStore maps every file under the receipt root to its checksum,
// keyed by slash-separated relative path. A missing root maps to empty.
func (s *ReceiptIntegrityService) walkReceiptStore() (map[string]string, error) {
	current := map[string]string{}
	if _, err := os.Stat(s.opts.ReceiptDir); os.IsNotExist(err) {
		return current, nil
	}

	err := filepath.WalkDir(s.opts.ReceiptDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.opts.ReceiptDir, p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		sum, err := Checksum(p)
		if err != nil {
			return err
		}
		current[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking receipt store: %w", err)
	}
	return current, nil
}

func (s *ReceiptIntegrityService) loadBaseline() baseline {
	b := baseline{Checksums: map[string]string{}}
	data, err := os.ReadFile(s.opts.BaselinePath)
	if err != nil {
		return b
	}
	if err := json.Unmarshal(data, &b); err != nil || b.Checksums == nil {
		return baseline{Checksums: map[string]string{}}
	}
	return b
}

// writeBaseline overwrites the baseline atomically: the new content lands
// under a temporary name and is renamed into place.
func (s *ReceiptIntegrityService) writeBaseline(b baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	tmp := s.opts.BaselinePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	if err := os.Rename(tmp, s.opts.BaselinePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing baseline: %w", err)
	}
	return nil
}

// saveReport persists a timestamped report file.
func (s *ReceiptIntegrityService) saveReport(report *IntegrityReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	name := reportFilePrefix + report.Timestamp.Format(filenameTimestampLayout) + ".json"
	if err := os.WriteFile(filepath.Join(s.opts.ReportDir, name), data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
