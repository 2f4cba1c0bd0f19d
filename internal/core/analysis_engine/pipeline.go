package analysis_engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/core/jurisdiction"
	objectclient "github.com/markdave123-py/leaselens/internal/core/object-client"
	"github.com/markdave123-py/leaselens/internal/models"
)

const (
	DefaultTopK     = 10
	defaultFileName = "Unknown.pdf"

	MsgNoFile              = "No file provided"
	MsgInvalidEncoding     = "File is not valid base64"
	MsgInsufficientCredits = "Insufficient credits. Please top up."
	MsgExtractionFailed    = "Failed to parse PDF"
	msgAnalysisFailed      = "Analysis failed"
)

var dataURIPrefix = regexp.MustCompile(`^data:[^;,]*;base64,`)

// Request is one lease submitted for analysis by an authenticated caller.
// City seeds the account on first use; the stored preference wins afterwards.
type Request struct {
	UserID     string
	Email      string
	City       string
	FileName   string
	FileBase64 string
}

// Deps are the collaborators of the pipeline. Objects may be nil.
type Deps struct {
	DB        core.DbClient
	Extractor core.DocumentExtractor
	Embedder  core.EmbeddingProvider
	Index     core.VectorIndex
	LLM       core.LLMProvider
	Objects   core.ObjectClient
}

// Config holds the business knobs of the pipeline.
//
// StarterCredits: balance of a lazily created account.
// DefaultCity:    jurisdiction of a new account when the caller gives none.
// ArchiveBucket:  where uploaded leases are copied; empty disables archiving.
type Config struct {
	StarterCredits int
	DefaultCity    string
	TopK           int
	ArchiveBucket  string
}

// Pipeline runs the per-request analysis state machine. It holds no mutable
// state, so one instance serves all requests concurrently.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  *zap.SugaredLogger
}

func NewPipeline(deps Deps, cfg Config, log *zap.SugaredLogger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "london"
	}
	return &Pipeline{deps: deps, cfg: cfg, log: log}
}

// Run starts the analysis and returns its progress stream. The channel
// carries zero or more StatusEvents followed by exactly one ResultEvent or
// ErrorEvent, and is then closed. It is buffered for the whole run, so the
// producer never blocks on a slow or absent reader.
func (p *Pipeline) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, int(StateDone)+1)
	go func() {
		defer close(events)
		res, err := p.Analyze(ctx, req, func(e StatusEvent) { events <- e })
		if err != nil {
			events <- ErrorEvent{Message: UserMessage(err)}
			return
		}
		events <- ResultEvent{Data: *res}
	}()
	return events
}

// Analyze executes the state machine synchronously, reporting every state it
// enters through progress. Errors are *StageError.
func (p *Pipeline) Analyze(ctx context.Context, req Request, progress func(StatusEvent)) (*Result, error) {
	status := func(s State, msg string) {
		if progress != nil {
			progress(StatusEvent{Step: int(s), Message: msg})
		}
	}
	log := p.log.With("user_id", req.UserID, "file", req.FileName)

	status(StateInit, "Initiating analysis...")
	pdf, err := decodeFile(req.FileBase64)
	if err != nil {
		return nil, fail(StateInit, err)
	}

	status(StateCreditCheck, "Checking credits...")
	user, err := p.deps.DB.GetOrCreateUser(ctx, &models.User{
		ID:      req.UserID,
		Email:   req.Email,
		Credits: p.cfg.StarterCredits,
		City:    p.seedCity(req.City),
	})
	if err != nil {
		return nil, fail(StateCreditCheck, err)
	}
	if user.Credits <= 0 {
		return nil, fail(StateCreditCheck, core.ErrInsufficientCredits)
	}

	status(StateReading, "Reading PDF...")
	doc, err := p.deps.Extractor.Extract(ctx, pdf)
	if err != nil {
		log.Warnw("Analysis: extraction failed", "error", err)
		return nil, fail(StateReading, err)
	}

	// Charged only for readable documents. A concurrent request may have
	// taken the last credit since the check above.
	left, err := p.deps.DB.ConsumeCredit(ctx, user.ID)
	if err != nil {
		return nil, fail(StateCreditCheck, err)
	}
	log.Infow("Analysis: credit consumed", "credits_left", left, "pages", doc.PageCount)

	ns := jurisdiction.Namespace(user.City)
	cityName := jurisdiction.DisplayName(user.City)

	status(StateRetrieving, fmt.Sprintf("Checking %s Laws...", cityName))
	contextBlock, err := p.retrieve(ctx, ns, cityName)
	if err != nil {
		return nil, fail(StateRetrieving, err)
	}
	if contextBlock == "" {
		log.Warnw("Analysis: no legal context retrieved", "namespace", ns)
	}

	status(StateGenerating, "Analyzing Risk Factors...")
	raw, err := p.deps.LLM.Generate(ctx, BuildPrompt(cityName, contextBlock, doc.Text))
	if err != nil {
		return nil, fail(StateGenerating, err)
	}
	analysis, err := ParseAnalysis(raw)
	if err != nil {
		log.Warnw("Analysis: unparseable model output", "error", err)
		return nil, fail(StateGenerating, err)
	}

	status(StatePersisting, "Generating Report...")
	scan := &models.Scan{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		FileName:      fileNameOrDefault(req.FileName),
		ExtractedText: TruncateChars(doc.Text, MaxLeaseChars),
		PageCount:     doc.PageCount,
		RiskScore:     analysis.RiskScore,
		Issues:        analysis.Issues,
	}
	if err := p.deps.DB.CreateScan(ctx, scan); err != nil {
		return nil, fail(StatePersisting, err)
	}
	p.archive(ctx, scan, pdf)

	log.Infow("Analysis: done", "scan_id", scan.ID, "risk_score", scan.RiskScore, "issues", len(scan.Issues))
	return &Result{ScanID: scan.ID, RiskScore: analysis.RiskScore, Issues: analysis.Issues}, nil
}

func (p *Pipeline) retrieve(ctx context.Context, ns, cityName string) (string, error) {
	vec, err := p.deps.Embedder.EmbedOne(ctx, RetrievalQuery(cityName))
	if err != nil {
		return "", err
	}
	if len(vec) == 0 {
		return "", fmt.Errorf("%w: query embedding", core.ErrEmptyResult)
	}
	matches, err := p.deps.Index.Query(ctx, ns, vec, p.cfg.TopK)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Metadata.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

func (p *Pipeline) archive(ctx context.Context, scan *models.Scan, pdf []byte) {
	if p.deps.Objects == nil || p.cfg.ArchiveBucket == "" {
		return
	}
	key := objectclient.ScanArchiveKey(scan.UserID, scan.ID, scan.FileName)
	if _, err := p.deps.Objects.UploadFile(ctx, p.cfg.ArchiveBucket, key, bytes.NewReader(pdf), "application/pdf"); err != nil {
		p.log.Warnw("Analysis: archive upload failed", "scan_id", scan.ID, "key", key, "error", err)
	}
}

func (p *Pipeline) seedCity(hint string) string {
	if ns := jurisdiction.Namespace(hint); ns != "" && jurisdiction.IsKnown(ns) {
		return ns
	}
	return p.cfg.DefaultCity
}

// decodeFile strips an optional data URI prefix and decodes the payload.
func decodeFile(payload string) ([]byte, error) {
	payload = strings.TrimSpace(dataURIPrefix.ReplaceAllString(strings.TrimSpace(payload), ""))
	if payload == "" {
		return nil, &ValidationError{Message: MsgNoFile}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, &ValidationError{Message: MsgInvalidEncoding}
		}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Message: MsgNoFile}
	}
	return data, nil
}

func fileNameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultFileName
	}
	return name
}

// ValidationError is a request problem with a message safe to show the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == core.ErrValidation }

// UserMessage renders an analysis error for the client.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, core.ErrValidation):
		return MsgNoFile
	case errors.Is(err, core.ErrInsufficientCredits):
		return MsgInsufficientCredits
	case errors.Is(err, core.ErrExtraction):
		return MsgExtractionFailed
	}
	var se *StageError
	if errors.As(err, &se) {
		err = se.Err
	}
	return fmt.Sprintf("%s: %v", msgAnalysisFailed, err)
}
