package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
	"github.com/movaia/movaia/internal/objectstore"
)

// Assembler builds user-facing result views. All artifact enrichment is
// best-effort: a failed presign or CSV fetch degrades its field to null
// and never fails the response.
type Assembler struct {
	analyses    *database.AnalysisRepository
	store       objectstore.ObjectStore
	rules       RuleTable
	downloadTTL time.Duration
}

func NewAssembler(analyses *database.AnalysisRepository, store objectstore.ObjectStore, rules RuleTable, downloadTTL time.Duration) *Assembler {
	if rules == nil {
		rules = ScreeningRules
	}
	if downloadTTL == 0 {
		downloadTTL = time.Hour
	}
	return &Assembler{
		analyses:    analyses,
		store:       store,
		rules:       rules,
		downloadTTL: downloadTTL,
	}
}

// AnalysisView is an analysis enriched with presigned references and the
// metrics classification.
type AnalysisView struct {
	*models.Analysis
	ThumbnailURL   *string         `json:"thumbnailUrl,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// ListResult is one page of analyses.
type ListResult struct {
	Items    []*AnalysisView `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// ArtifactsView pairs the analysis with its per-angle artifact bundles.
type ArtifactsView struct {
	Analysis *models.Analysis `json:"analysis"`
	Files    ArtifactFiles    `json:"files"`
}

// GetAnalysis loads one analysis for the requester. Requesters other than
// the owner or the uploading coach get not-found, so existence is not
// leaked. A completed analysis carries a presigned thumbnail when the
// presign succeeds.
func (s *Assembler) GetAnalysis(ctx context.Context, analysisID, requesterID string) (*AnalysisView, error) {
	a, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !canView(a, requesterID) {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, apperr.ErrNotFound)
	}

	view := &AnalysisView{Analysis: a}
	if a.Status == models.StatusCompleted {
		view.ThumbnailURL = s.presignThumbnail(ctx, a)
	}
	return view, nil
}

// ListAnalyses returns one page of the requester's analyses, newest first.
// Completed items are enriched with a thumbnail URL and a classification
// computed from the normal angle's results CSV; enrichment failures are
// isolated per item.
func (s *Assembler) ListAnalyses(ctx context.Context, requesterID string, page, pageSize int, statusFilter *models.Status) (*ListResult, error) {
	if statusFilter != nil && !models.ValidStatus(*statusFilter) {
		return nil, fmt.Errorf("unknown status %q: %w", *statusFilter, apperr.ErrValidation)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	analyses, total, err := s.analyses.List(ctx, requesterID, statusFilter, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]*AnalysisView, 0, len(analyses))
	for _, a := range analyses {
		view := &AnalysisView{Analysis: a}
		if a.Status == models.StatusCompleted {
			view.ThumbnailURL = s.presignThumbnail(ctx, a)
			view.Classification = s.classify(ctx, a)
		}
		items = append(items, view)
	}

	return &ListResult{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetArtifacts builds the full artifact bundle for each uploaded angle.
// The normal angle is always attempted; angles never uploaded yield null
// bundles. Every reference is presigned independently and concurrently,
// and each failure degrades only its own field.
func (s *Assembler) GetArtifacts(ctx context.Context, analysisID, requesterID string) (*ArtifactsView, error) {
	a, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !canView(a, requesterID) {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, apperr.ErrNotFound)
	}

	view := &ArtifactsView{Analysis: a}
	view.Files.Normal = s.angleBundle(ctx, a, models.AngleNormal)
	if a.LeftToRight.Uploaded {
		view.Files.LeftToRight = s.angleBundle(ctx, a, models.AngleLeftToRight)
	}
	if a.RightToLeft.Uploaded {
		view.Files.RightToLeft = s.angleBundle(ctx, a, models.AngleRightToLeft)
	}
	if a.RearView.Uploaded {
		view.Files.RearView = s.angleBundle(ctx, a, models.AngleRearView)
	}

	return view, nil
}

// angleBundle presigns every artifact of one angle with a bounded fan-out.
// Results land in per-task slots so no shared map is written concurrently.
func (s *Assembler) angleBundle(ctx context.Context, a *models.Analysis, angle models.Angle) *AngleArtifacts {
	bundle := &AngleArtifacts{
		Visualizations: make(map[string]map[string]*string, len(visualizationSpecs)),
	}

	type task struct {
		filename string
		assign   func(url *string)
	}

	tasks := []task{
		{resultsCSVFile, func(u *string) { bundle.ResultsCSV = u }},
		{frameByFrameCSVFile, func(u *string) { bundle.FrameByFrameCSV = u }},
		{visualizationVideoFile, func(u *string) { bundle.VisualizationVideo = u }},
		{objectstore.ThumbnailFilename, func(u *string) { bundle.Thumbnail = u }},
	}

	for _, spec := range visualizationSpecs {
		parts := make(map[string]*string, len(spec.parts))
		bundle.Visualizations[spec.name] = parts
		for _, part := range spec.parts {
			part := part
			tasks = append(tasks, task{
				filename: visualizationFilename(spec, part),
				assign:   func(u *string) { parts[part] = u },
			})
		}
	}

	urls := make([]*string, len(tasks))
	var wg sync.WaitGroup
	for i, tk := range tasks {
		wg.Add(1)
		go func(i int, filename string) {
			defer wg.Done()
			key := objectstore.ResultKey(a.OwnerID, a.ID, angle, filename)
			url, err := s.store.PresignDownload(ctx, key, s.downloadTTL)
			if err != nil {
				// Missing artifact, not an error: the field stays null.
				return
			}
			urls[i] = &url
		}(i, tk.filename)
	}
	wg.Wait()

	for i, tk := range tasks {
		tk.assign(urls[i])
	}

	return bundle
}

func (s *Assembler) presignThumbnail(ctx context.Context, a *models.Analysis) *string {
	if a.ThumbnailKey == nil {
		return nil
	}
	url, err := s.store.PresignDownload(ctx, *a.ThumbnailKey, s.downloadTTL)
	if err != nil {
		log.Debug().Err(err).Str("analysisId", a.ID).Msg("Thumbnail presign failed")
		return nil
	}
	return &url
}

func (s *Assembler) classify(ctx context.Context, a *models.Analysis) *Classification {
	key := objectstore.ResultKey(a.OwnerID, a.ID, models.AngleNormal, resultsCSVFile)
	data, err := s.store.Download(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("analysisId", a.ID).Msg("Results CSV fetch failed")
		return nil
	}
	c, err := ClassifyCSV(data, s.rules)
	if err != nil {
		log.Warn().Err(err).Str("analysisId", a.ID).Msg("Results CSV unparsable")
		return nil
	}
	return &c
}

func canView(a *models.Analysis, requesterID string) bool {
	if requesterID == "" {
		return false
	}
	if a.OwnerID == requesterID {
		return true
	}
	return a.UploadedByCoachID != nil && *a.UploadedByCoachID == requesterID
}
