package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/stats"
	"github.com/JonMunkholm/procure/internal/store"
)

var (
	ErrNoData       = errors.New("no data available")
	ErrFileTooLarge = errors.New("file too large")
)

// Options configures a Service.
type Options struct {
	Tables      config.TablesConfig
	PreviewRows int
	MaxFileSize int64
	Now         func() time.Time
}

// Service is the entry point for ingestion runs, reference maintenance and
// the read-only views over stored purchase orders.
type Service struct {
	store    store.Store
	sessions SessionStore
	limiter  *WriteLimiter
	registry *Registry
	tables   config.TablesConfig

	previewRows int
	maxFileSize int64
	now         func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewService wires the pipeline to its collaborators.
func NewService(st store.Store, sessions SessionStore, limiter *WriteLimiter, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if limiter == nil {
		limiter = NewWriteLimiter(0, 0)
	}
	return &Service{
		store:       st,
		sessions:    sessions,
		limiter:     limiter,
		registry:    NewRegistry(opts.Tables),
		tables:      opts.Tables,
		previewRows: opts.PreviewRows,
		maxFileSize: opts.MaxFileSize,
		now:         now,
		busy:        make(map[string]struct{}),
	}
}

func (s *Service) deps() Deps {
	return Deps{
		Store:      s.store,
		References: s.registry.All(),
		Columns:    PurchaseOrderColumns,
		Target: WriteTarget{
			Table:      s.tables.PurchaseOrders,
			OnConflict: ColBusinessCode,
			Columns:    writeColumns(),
			Required:   []string{ColProductID, ColSupplierID, ColCostCenterID},
		},
		PreviewRows: s.previewRows,
		Now:         s.now,
	}
}

// writeColumns are the purchase-order columns sent to the store. Natural key
// columns of an upload are not part of the stored row.
func writeColumns() []string {
	cols := make([]string, len(PurchaseOrderColumns))
	for i, spec := range PurchaseOrderColumns {
		cols[i] = spec.Name
	}
	return cols
}

// =============================================================================
// Ingestion
// =============================================================================

// StartIngest opens a new session and loads the file into it. The session is
// saved even when loading fails so its messages can be shown.
func (s *Service) StartIngest(ctx context.Context, fileName string, data []byte) (State, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return State{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, fileName, len(data), s.maxFileSize)
	}

	id := uuid.NewString()
	next, stepErr := Step(ctx, NewState(id, s.now()), Command{Kind: CmdLoad, FileName: fileName, Data: data}, s.deps())
	if err := s.sessions.Save(ctx, next); err != nil {
		return next, err
	}
	return next, stepErr
}

// Apply runs one command against a session and saves the resulting state.
// Only one command per session runs at a time.
func (s *Service) Apply(ctx context.Context, id string, kind CommandKind) (State, error) {
	if !s.lock(id) {
		return State{}, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	defer s.unlock(id)

	cur, err := s.sessions.Load(ctx, id)
	if err != nil {
		return State{}, err
	}

	if kind == CmdWrite {
		return s.write(ctx, cur)
	}

	next, stepErr := Step(ctx, cur, Command{Kind: kind}, s.deps())
	if errors.Is(stepErr, ErrInvalidTransition) {
		return cur, stepErr
	}
	if err := s.sessions.Save(ctx, next); err != nil {
		return next, err
	}
	return next, stepErr
}

// write holds a limiter slot for the whole loop. Once the run is marked
// Writing the loop and the final save no longer follow ctx's cancellation.
func (s *Service) write(ctx context.Context, cur State) (State, error) {
	if cur.Stage != StageReadyToWrite {
		return cur, fmt.Errorf("%w: cannot %s from stage %s", ErrInvalidTransition, CmdWrite, cur.Stage)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return cur, err
	}
	defer s.limiter.Release()

	writing, err := MarkWriting(cur, s.now())
	if err != nil {
		return cur, err
	}
	if err := s.sessions.Save(ctx, writing); err != nil {
		return cur, err
	}

	detached := context.WithoutCancel(ctx)
	next, stepErr := Step(detached, writing, Command{Kind: CmdWrite}, s.deps())
	if err := s.sessions.Save(detached, next); err != nil {
		return next, err
	}

	log := logging.WithFields(ctx, "session_id", cur.ID, "file", cur.FileName, "ip", ClientIPFromContext(ctx))
	if stepErr != nil {
		log.Error("write aborted", "error", stepErr)
	} else {
		log.Info("write completed", "rows", len(next.Write.Written))
	}
	return next, stepErr
}

// Session returns the current state of a session.
func (s *Service) Session(ctx context.Context, id string) (State, error) {
	return s.sessions.Load(ctx, id)
}

// Discard drops a session.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

func (s *Service) lock(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[id]; ok {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Service) unlock(id string) {
	s.mu.Lock()
	delete(s.busy, id)
	s.mu.Unlock()
}

// TemplateWorkbook writes an example upload file with every purchase-order
// column and the natural key columns used for mapping.
func (s *Service) TemplateWorkbook(w io.Writer) error {
	header := writeColumns()
	sample := map[string]string{
		ColBusinessCode: "PO-0001",
		ColBuyerUser:    "jdoe",
		ColPurchaseType: "regular",
		ColQuantity:     "10",
		ColTaxes:        "1.90",
		ColStatus:       "1",
		ColOrderDate:    "31/01/2024 10:00:00",
		ColCreationDate: "30/01/2024 09:00:00",
		ColApprovalDate: "31/01/2024 09:30:00",
		ColReceiptDate:  "05/02/2024 14:00:00",
	}
	for _, t := range s.registry.All() {
		header = append(header, t.SourceColumn)
	}
	sample["product_code"] = "P1"
	sample["supplier_tax_id"] = "20123456789"
	sample["cost_center_code"] = "CC01"

	row := make([]string, len(header))
	for i, name := range header {
		row[i] = sample[name]
	}
	return frame.WriteXLSX(w, frame.Sheet{Name: "purchase_orders", Frame: frame.FromRows(header, [][]string{row})})
}

// LimiterStatus reports the write limiter.
func (s *Service) LimiterStatus() WriteLimiterStatus {
	return s.limiter.Status()
}

// WaitForWrites blocks until running write loops finish or ctx ends.
func (s *Service) WaitForWrites(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// Health checks the store when it can be pinged.
func (s *Service) Health(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// =============================================================================
// Reference maintenance
// =============================================================================

// ReferenceTables lists the maintainable reference tables.
func (s *Service) ReferenceTables() []ReferenceTable {
	return s.registry.All()
}

func (s *Service) reference(key string) (ReferenceTable, error) {
	t, ok := s.registry.Get(key)
	if !ok {
		return ReferenceTable{}, fmt.Errorf("%w: %s", ErrUnknownReference, key)
	}
	return t, nil
}

// ListReference returns every row of a reference table.
func (s *Service) ListReference(ctx context.Context, key string) ([]store.Record, error) {
	t, err := s.reference(key)
	if err != nil {
		return nil, err
	}
	return ListReference(ctx, s.store, t)
}

// UpsertReference creates or updates one reference row.
func (s *Service) UpsertReference(ctx context.Context, key string, req ReferenceRequest) (store.Record, error) {
	t, err := s.reference(key)
	if err != nil {
		return nil, err
	}
	rec, err := UpsertReference(ctx, s.store, t, req)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("reference upserted",
		"table", t.Table,
		"key", rec[t.NaturalKeyColumn],
		"ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)
	return rec, nil
}

// =============================================================================
// Views over stored data
// =============================================================================

func (s *Service) fetchFrame(ctx context.Context, table string) (*frame.Frame, error) {
	rows, err := s.store.Fetch(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoData, table)
	}
	return frame.FromRecords(rows), nil
}

// QualityReport checks the stored purchase orders.
func (s *Service) QualityReport(ctx context.Context) (*QualityReport, error) {
	f, err := s.fetchFrame(ctx, s.tables.PurchaseOrders)
	if err != nil {
		return nil, err
	}
	return BuildQualityReport(s.tables.PurchaseOrders, f), nil
}

// QualityWorkbook writes the quality report and the flagged rows as XLSX.
func (s *Service) QualityWorkbook(ctx context.Context, w io.Writer) error {
	f, err := s.fetchFrame(ctx, s.tables.PurchaseOrders)
	if err != nil {
		return err
	}
	report := BuildQualityReport(s.tables.PurchaseOrders, f)
	return frame.WriteXLSX(w, report.Sheets(f)...)
}

// Stats computes the statistics page over filtered purchase orders.
func (s *Service) Stats(ctx context.Context, flt stats.Filter) (stats.Report, error) {
	f, err := s.fetchFrame(ctx, s.tables.PurchaseOrders)
	if err != nil {
		return stats.Report{}, err
	}
	return stats.Build(f, flt), nil
}

// Dashboard summarizes purchases per category.
func (s *Service) Dashboard(ctx context.Context, categories, subcategories []string) (stats.DashboardSummary, error) {
	f, err := s.fetchFrame(ctx, s.tables.CategoryView)
	if err != nil {
		return stats.DashboardSummary{}, err
	}
	return stats.Dashboard(f, categories, subcategories), nil
}

// Analysis computes the demand series and atypical purchases.
func (s *Service) Analysis(ctx context.Context, quantile float64) (stats.Analysis, error) {
	f, err := s.fetchFrame(ctx, s.tables.AnalysisView)
	if err != nil {
		return stats.Analysis{}, err
	}
	return stats.Analyze(f, quantile)
}
