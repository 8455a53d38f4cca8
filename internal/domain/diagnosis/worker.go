package diagnosis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartagri-server-go/internal/domain/classify"
	"smartagri-server-go/internal/domain/eventbus"
	"smartagri-server-go/internal/domain/rag"
	"smartagri-server-go/internal/domain/report"
	"smartagri-server-go/internal/domain/taxonomy"
)

// TaskQueue is the worker's view of the job queue.
type TaskQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
	MarkStarted(ctx context.Context, taskID string) error
	SetSuccess(ctx context.Context, taskID string, result *Result) error
	SetFailure(ctx context.Context, taskID string, message string) error
}

// Downloader fetches the image bytes for a task.
type Downloader interface {
	DownloadContext(ctx context.Context, rawURL string) ([]byte, error)
}

// TaxonomyLookup resolves classifier labels to taxonomy entries.
type TaxonomyLookup interface {
	ByModelLabel(label string) (*taxonomy.Entry, bool)
	SearchKeywords(id int) []string
}

// Retriever fetches knowledge passages for the diagnosis.
type Retriever interface {
	Query(ctx context.Context, queryText string, topK int) ([]rag.Document, error)
}

// Reporter generates the final report text.
type Reporter interface {
	Generate(ctx context.Context, input report.Input) (string, error)
}

// Recorder persists completed diagnoses.
type Recorder interface {
	RecordResult(ctx context.Context, task *Task, status string, result *Result, errMsg string) error
}

// Worker drains the queue and runs the diagnosis pipeline. Retriever,
// Reporter, Recorder, and Bus are optional; the pipeline degrades to a bare
// classification when they are absent.
type Worker struct {
	queue      TaskQueue
	downloader Downloader
	classifier classify.Classifier
	taxonomy   TaxonomyLookup
	retriever  Retriever
	reporter   Reporter
	recorder   Recorder
	bus        *eventbus.Bus
	logger     *slog.Logger

	dequeueTimeout time.Duration
}

// WorkerOption customizes optional collaborators.
type WorkerOption func(*Worker)

// WithRetriever enables knowledge retrieval for RETRIEVE-policy entries.
func WithRetriever(r Retriever) WorkerOption {
	return func(w *Worker) { w.retriever = r }
}

// WithReporter enables LLM report generation.
func WithReporter(r Reporter) WorkerOption {
	return func(w *Worker) { w.reporter = r }
}

// WithRecorder enables persistence of finished diagnoses.
func WithRecorder(r Recorder) WorkerOption {
	return func(w *Worker) { w.recorder = r }
}

// WithBus enables lifecycle event publication.
func WithBus(b *eventbus.Bus) WorkerOption {
	return func(w *Worker) { w.bus = b }
}

// NewWorker wires the mandatory pipeline stages.
func NewWorker(queue TaskQueue, downloader Downloader, classifier classify.Classifier,
	tax TaxonomyLookup, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		queue:          queue,
		downloader:     downloader,
		classifier:     classifier,
		taxonomy:       tax,
		logger:         logger,
		dequeueTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task *Task) {
	w.logger.Info("diagnosis started", "task_id", task.ID, "image_url", task.ImageURL)
	if err := w.queue.MarkStarted(ctx, task.ID); err != nil {
		w.logger.Warn("mark started failed", "task_id", task.ID, "error", err)
	}

	result, err := w.Process(ctx, task)
	if err != nil {
		w.logger.Error("diagnosis failed", "task_id", task.ID, "error", err)
		if qerr := w.queue.SetFailure(ctx, task.ID, err.Error()); qerr != nil {
			w.logger.Error("store failure state failed", "task_id", task.ID, "error", qerr)
		}
		w.record(ctx, task, StateFailure, nil, err.Error())
		if w.bus != nil {
			w.bus.Publish(eventbus.TopicDiagnosisFailed, task.ID, err.Error())
		}
		return
	}

	if err := w.queue.SetSuccess(ctx, task.ID, result); err != nil {
		w.logger.Error("store success state failed", "task_id", task.ID, "error", err)
	}
	w.record(ctx, task, StateSuccess, result, "")
	if w.bus != nil {
		w.bus.Publish(eventbus.TopicDiagnosisCompleted, task.ID, result.DiagnosisName)
	}
	w.logger.Info("diagnosis completed", "task_id", task.ID,
		"label", result.ModelLabel, "diagnosis", result.DiagnosisName)
}

// Process runs the full pipeline for one task and returns its result. Failures
// in the retrieval and report stages degrade the result instead of failing
// the task; download and classification failures fail it.
func (w *Worker) Process(ctx context.Context, task *Task) (*Result, error) {
	image, err := w.downloader.DownloadContext(ctx, task.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	w.logger.Debug("image downloaded", "task_id", task.ID, "bytes", len(image))

	classification, err := w.classifier.Classify(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("classify image: %w", err)
	}

	result := &Result{
		ModelLabel:      classification.ModelLabel,
		Confidence:      classification.Confidence,
		InferenceTimeMs: classification.InferenceTimeMs,
		CropType:        task.CropType,
		Location:        task.Location,
	}

	entry, ok := w.taxonomy.ByModelLabel(classification.ModelLabel)
	if !ok {
		w.logger.Warn("no taxonomy entry for label, requesting human review",
			"task_id", task.ID, "label", classification.ModelLabel)
		result.DiagnosisName = "未知"
		result.LatinName = "Unknown"
		result.Category = "Unknown"
		result.ActionPolicy = taxonomy.PolicyHumanReview
		return result, nil
	}

	id := entry.ID
	result.TaxonomyID = &id
	result.DiagnosisName = entry.ZhScientificName
	result.LatinName = entry.LatinName
	result.Category = entry.Category
	result.ActionPolicy = entry.ActionPolicy
	result.Description = entry.Description
	result.RiskLevel = entry.RiskLevel

	if entry.ActionPolicy != taxonomy.PolicyRetrieve {
		return result, nil
	}

	docs := w.retrieve(ctx, task, entry)
	result.Report = w.generateReport(ctx, task, entry, docs)
	return result, nil
}

func (w *Worker) retrieve(ctx context.Context, task *Task, entry *taxonomy.Entry) []rag.Document {
	if w.retriever == nil {
		return nil
	}
	query := entry.ZhScientificName
	if keywords := w.taxonomy.SearchKeywords(entry.ID); len(keywords) > 0 {
		query = query + " " + strings.Join(keywords, " ")
	}
	docs, err := w.retriever.Query(ctx, query, 0)
	if err != nil {
		w.logger.Warn("knowledge retrieval failed, continuing without context",
			"task_id", task.ID, "error", err)
		return nil
	}
	return docs
}

func (w *Worker) generateReport(ctx context.Context, task *Task, entry *taxonomy.Entry, docs []rag.Document) string {
	if w.reporter == nil {
		return ""
	}
	if entry.Category != taxonomy.CategoryDisease && entry.Category != taxonomy.CategoryPest {
		return ""
	}
	text, err := w.reporter.Generate(ctx, report.Input{
		Category:  entry.Category,
		Name:      entry.ZhScientificName,
		LatinName: entry.LatinName,
		Documents: docs,
	})
	if err != nil {
		w.logger.Warn("report generation failed, returning result without report",
			"task_id", task.ID, "error", err)
		return ""
	}
	return text
}

func (w *Worker) record(ctx context.Context, task *Task, status string, result *Result, errMsg string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordResult(ctx, task, status, result, errMsg); err != nil {
		w.logger.Warn("persist diagnosis record failed", "task_id", task.ID, "error", err)
	}
}
