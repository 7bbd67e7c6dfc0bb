package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	instruments "labmaint-cloud/internal/instruments/domain"
	"labmaint-cloud/internal/observability/metrics"
	results "labmaint-cloud/internal/results/domain"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedule "labmaint-cloud/internal/schedule/domain"
	templates "labmaint-cloud/internal/templates/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// CompletionStore persists a result, completes its event and advances the
// instrument's next maintenance date as one atomic unit. A lost completion
// guard surfaces as schedule.ErrStaleCompletion with nothing applied.
type CompletionStore interface {
	RecordCompletion(ctx context.Context, result results.MaintenanceResult, notes string, nextDue time.Time) error
}

// ResultReader loads stored results.
type ResultReader interface {
	GetByID(ctx context.Context, id string) (*results.MaintenanceResult, error)
	ListByInstrument(ctx context.Context, instrumentID string) ([]results.MaintenanceResult, error)
}

// TemplateSource loads test templates.
type TemplateSource interface {
	Get(ctx context.Context, id string) (*templates.TestTemplate, error)
}

// Facade composes the recurrence and evaluation engines behind the two
// driving read/write models: what is due or overdue right now, and whether
// a recorded measurement is within spec.
type Facade struct {
	instruments scheduleapp.InstrumentRepository
	events      scheduleapp.EventRepository
	store       CompletionStore
	reader      ResultReader
	templates   TemplateSource
	schedule    *scheduleapp.Service
	clock       Clock
}

// FacadeOption customizes the facade.
type FacadeOption func(*Facade)

// WithClock assigns a clock.
func WithClock(clock Clock) FacadeOption {
	return func(f *Facade) {
		f.clock = clock
	}
}

// WithTemplateSource assigns a template source.
func WithTemplateSource(source TemplateSource) FacadeOption {
	return func(f *Facade) {
		f.templates = source
	}
}

// NewFacade constructs the orchestration facade.
func NewFacade(
	instrumentRepo scheduleapp.InstrumentRepository,
	events scheduleapp.EventRepository,
	store CompletionStore,
	reader ResultReader,
	scheduleService *scheduleapp.Service,
	opts ...FacadeOption,
) (*Facade, error) {
	if instrumentRepo == nil || events == nil {
		return nil, errors.New("results facade: nil repository")
	}
	if store == nil {
		return nil, errors.New("results facade: nil completion store")
	}
	if scheduleService == nil {
		return nil, errors.New("results facade: nil schedule service")
	}
	facade := &Facade{
		instruments: instrumentRepo,
		events:      events,
		store:       store,
		reader:      reader,
		schedule:    scheduleService,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(facade)
	}
	return facade, nil
}

// EventView is an open maintenance event joined with its instrument.
type EventView struct {
	Event     schedule.MaintenanceEvent `json:"event"`
	EqpID     string                    `json:"eqp_id"`
	Location  string                    `json:"location,omitempty"`
	Status    string                    `json:"status"`
	DaysUntil int                       `json:"days_until"`
}

// DueList partitions open events by derived status, each group sorted by
// due date ascending with ties broken by instrument eqp id.
type DueList struct {
	Overdue     []EventView              `json:"overdue"`
	InProgress  []EventView              `json:"in_progress"`
	Scheduled   []EventView              `json:"scheduled"`
	Unscheduled []instruments.Instrument `json:"unscheduled,omitempty"`
}

// DueAndOverdue builds the dashboard read model at the given time.
func (f *Facade) DueAndOverdue(ctx context.Context, now time.Time) (DueList, error) {
	started := f.clock.Now()
	list, err := f.dueAndOverdue(ctx, now)
	metrics.ObserveDueQuery(err, f.clock.Now().Sub(started))
	return list, err
}

func (f *Facade) dueAndOverdue(ctx context.Context, now time.Time) (DueList, error) {
	var result DueList

	all, err := f.instruments.List(ctx)
	if err != nil {
		return result, err
	}
	byID := make(map[string]instruments.Instrument, len(all))
	for _, instrument := range all {
		byID[instrument.ID] = instrument
		if !instrument.Scheduled() {
			result.Unscheduled = append(result.Unscheduled, instrument)
		}
	}

	open, err := f.events.ListOpen(ctx)
	if err != nil {
		return result, err
	}
	now = schedule.DateOnly(now)
	for _, event := range open {
		instrument := byID[event.InstrumentID]
		view := EventView{
			Event:     event,
			EqpID:     instrument.EqpID,
			Location:  instrument.Location,
			Status:    schedule.DeriveStatus(event, now),
			DaysUntil: int(schedule.DateOnly(event.DueDate).Sub(now).Hours() / 24),
		}
		switch view.Status {
		case schedule.StatusOverdue:
			result.Overdue = append(result.Overdue, view)
		case schedule.StatusInProgress:
			result.InProgress = append(result.InProgress, view)
		default:
			result.Scheduled = append(result.Scheduled, view)
		}
	}

	for _, group := range [][]EventView{result.Overdue, result.InProgress, result.Scheduled} {
		sortViews(group)
	}
	return result, nil
}

// RecordResultRequest is the input for recording a completed inspection.
type RecordResultRequest struct {
	EventID     string
	TemplateID  string
	Sections    []templates.TestSection
	ResultType  string
	DocumentRef string
	Notes       string
	CompletedAt time.Time
}

// RecordResultResponse reports the persisted result and its evaluation.
type RecordResultResponse struct {
	Result   results.MaintenanceResult `json:"result"`
	Sections []templates.SectionResult `json:"sections,omitempty"`
	Passed   bool                      `json:"passed"`
	NextDue  time.Time                 `json:"next_due"`
}

// RecordResult validates the caller's permission, evaluates the filled
// sections, and atomically persists the result, completes the event and
// advances the schedule. Either all three apply or none do.
func (f *Facade) RecordResult(ctx context.Context, permissions auth.PermissionMap, req RecordResultRequest) (RecordResultResponse, error) {
	var resp RecordResultResponse

	if !auth.HasPermission(permissions, auth.FeatureUpdateMaintenance, auth.LevelEdit) {
		return resp, auth.ErrPermissionDenied
	}
	if req.EventID == "" {
		return resp, errors.New("results facade: empty event id")
	}

	event, err := f.events.GetByID(ctx, req.EventID)
	if err != nil {
		return resp, err
	}
	if event == nil {
		return resp, schedule.ErrNotFound
	}
	if event.Completed() {
		return resp, schedule.ErrStaleCompletion
	}

	instrument, err := f.instruments.Get(ctx, event.InstrumentID)
	if err != nil {
		return resp, err
	}
	if instrument == nil {
		return resp, instruments.ErrNotFound
	}

	sections := req.Sections
	if len(sections) == 0 && req.TemplateID != "" && f.templates != nil {
		template, err := f.templates.Get(ctx, req.TemplateID)
		if err != nil {
			return resp, err
		}
		if template == nil {
			return resp, templates.ErrNotFound
		}
		sections = template.Sections
	}

	resp.Passed = true
	for _, section := range sections {
		outcome := templates.EvaluateSection(section)
		resp.Sections = append(resp.Sections, outcome)
		if outcome.Evaluated > 0 && !outcome.Passed {
			resp.Passed = false
		}
		for _, row := range outcome.Rows {
			metrics.RowEvaluated(rowOutcome(row))
		}
	}

	resultType := req.ResultType
	if resultType == "" {
		resultType = results.ResultPass
		if !resp.Passed {
			resultType = results.ResultFail
		}
	}

	completedAt := req.CompletedAt
	if completedAt.IsZero() {
		completedAt = f.clock.Now()
	}
	completedAt = schedule.DateOnly(completedAt)

	// Next due date assumes this completion counts: cyclesElapsed + 1.
	completed, err := f.events.CountCompleted(ctx, instrument.ID, instrument.MaintenanceType)
	if err != nil {
		return resp, err
	}
	var nextDue time.Time
	if instrument.Scheduled() {
		nextDue = schedule.NextDueDate(*instrument.ScheduleDate, instrument.Frequency, completed+1)
	}

	record := results.MaintenanceResult{
		ID:            audit.NewResourceID("res"),
		EventID:       event.ID,
		InstrumentID:  instrument.ID,
		TemplateID:    req.TemplateID,
		ResultType:    resultType,
		DocumentRef:   req.DocumentRef,
		Notes:         req.Notes,
		CompletedDate: completedAt,
		Sections:      sections,
		CreatedAt:     f.clock.Now(),
	}
	if err := record.Validate(); err != nil {
		return resp, err
	}

	if err := f.store.RecordCompletion(ctx, record, req.Notes, nextDue); err != nil {
		if errors.Is(err, schedule.ErrStaleCompletion) {
			metrics.CompletionRecorded("conflict")
		}
		return resp, err
	}
	metrics.CompletionRecorded("success")

	// Materialization of the following cycle is idempotent; the daily
	// scheduler re-ensures it if this call is interrupted.
	if instrument.Scheduled() {
		refreshed := *instrument
		refreshed.NextMaintenanceDate = &nextDue
		if _, err := f.schedule.MaterializeInstrument(ctx, refreshed); err != nil && !errors.Is(err, schedule.ErrUnscheduled) {
			return resp, err
		}
	}

	resp.Result = record
	resp.NextDue = nextDue
	return resp, nil
}

// History returns all recorded results for an instrument.
func (f *Facade) History(ctx context.Context, instrumentID string) ([]results.MaintenanceResult, error) {
	if f.reader == nil {
		return nil, errors.New("results facade: nil result reader")
	}
	return f.reader.ListByInstrument(ctx, instrumentID)
}

// Result loads one stored result.
func (f *Facade) Result(ctx context.Context, id string) (*results.MaintenanceResult, error) {
	if f.reader == nil {
		return nil, errors.New("results facade: nil result reader")
	}
	return f.reader.GetByID(ctx, id)
}

// Instrument loads instrument master data for exports.
func (f *Facade) Instrument(ctx context.Context, id string) (*instruments.Instrument, error) {
	return f.instruments.Get(ctx, id)
}

func sortViews(views []EventView) {
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].Event.DueDate.Equal(views[j].Event.DueDate) {
			return views[i].Event.DueDate.Before(views[j].Event.DueDate)
		}
		return views[i].EqpID < views[j].EqpID
	})
}

func rowOutcome(row templates.RowResult) string {
	switch {
	case row.Incomplete:
		return "incomplete"
	case !row.Evaluated:
		return "recorded"
	case row.Passed:
		return "passed"
	default:
		return "failed"
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
