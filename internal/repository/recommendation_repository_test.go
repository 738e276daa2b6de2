package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"yieldpilot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

func TestRecommendationRunMigrationsExecutesSchema(t *testing.T) {
	pool := &recStubPool{}
	repo := NewRecommendationRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) == 0 {
		t.Fatal("expected Exec to be called")
	}
}

func TestRecommendationInsertPendingBatchesAndMintsIDs(t *testing.T) {
	batchResults := &recStubBatchResults{}
	pool := &recStubPool{batchResults: batchResults}
	repo := NewRecommendationRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	drafts := []domain.Recommendation{
		{UserID: "user-1", ToPoolID: "pool-a", ToProtocol: "aave-v3", AssetSymbol: "USDC", Amount: "1000", TargetAPY: 8.1, NetGainUSD: 81, RiskScore: 2},
		{UserID: "user-1", ToPoolID: "pool-b", ToProtocol: "curve", AssetSymbol: "DAI", Amount: "500", TargetAPY: 6.2, NetGainUSD: 31, RiskScore: 3},
	}
	inserted, err := repo.InsertPending(context.Background(), drafts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch == nil || pool.queuedBatch.Len() != len(drafts) {
		t.Fatalf("expected batch of size %d", len(drafts))
	}
	if batchResults.execCalls != len(drafts) {
		t.Fatalf("expected %d Exec calls, got %d", len(drafts), batchResults.execCalls)
	}
	for _, rec := range inserted {
		if rec.ID == "" {
			t.Fatal("expected minted id")
		}
		if rec.Status != domain.StatusPending {
			t.Fatalf("expected pending status, got %s", rec.Status)
		}
	}
}

func TestRecommendationListPendingScansRows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	fromPool := "pool-old"
	fromProto := "compound"
	apy := 3.2
	rows := [][]any{{
		"rec-1", "user-1", &fromPool, &fromProto, "pool-a", "aave-v3",
		"USDC", "1000", &apy, 8.1, 49.0, int16(2), "higher apy", "pending", now, (*time.Time)(nil), "",
	}}
	pool := &recStubPool{rowsData: rows}
	repo := NewRecommendationRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	recs, err := repo.ListPending(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != "rec-1" || rec.Status != domain.StatusPending || rec.RiskScore != 2 {
		t.Fatalf("unexpected payload: %+v", rec)
	}
	if rec.FromPoolID == nil || *rec.FromPoolID != "pool-old" {
		t.Fatalf("expected from pool, got %+v", rec.FromPoolID)
	}
	if rec.CurrentAPY == nil || *rec.CurrentAPY != 3.2 {
		t.Fatalf("expected current apy, got %+v", rec.CurrentAPY)
	}
	if rec.ExecutedAt != nil {
		t.Fatal("expected nil executed_at")
	}
}

func TestRecommendationMarkExecutedReportsRaceLoss(t *testing.T) {
	pool := &recStubPool{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewRecommendationRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	ok, err := repo.MarkExecuted(context.Background(), "rec-1", time.Now(), "shift-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected race loss to report false")
	}

	pool.execTag = pgconn.NewCommandTag("UPDATE 1")
	ok, err = repo.MarkExecuted(context.Background(), "rec-1", time.Now(), "shift-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected successful transition to report true")
	}
}

func TestRecommendationGetByIDNotFound(t *testing.T) {
	pool := &recStubPool{rowErr: pgx.ErrNoRows}
	repo := NewRecommendationRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if _, err := repo.GetByID(context.Background(), "missing"); err != domain.ErrRecommendationNotFound {
		t.Fatalf("expected ErrRecommendationNotFound, got %v", err)
	}
}

type recStubPool struct {
	execSQL      []string
	execArgs     [][]any
	execTag      pgconn.CommandTag
	batchResults pgx.BatchResults
	queuedBatch  *pgx.Batch
	rowsData     [][]any
	rowErr       error
}

func (s *recStubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	return s.execTag, nil
}

func (s *recStubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.queuedBatch = b
	if s.batchResults != nil {
		return s.batchResults
	}
	return &recStubBatchResults{}
}

func (s *recStubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &recStubRows{data: dataCopy}, nil
}

func (s *recStubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.rowErr != nil {
		return &recStubRow{err: s.rowErr}
	}
	if len(s.rowsData) > 0 {
		return &recStubRow{data: s.rowsData[0]}
	}
	return &recStubRow{err: pgx.ErrNoRows}
}

type recStubBatchResults struct {
	execCalls int
}

func (s *recStubBatchResults) Exec() (pgconn.CommandTag, error) {
	s.execCalls++
	return pgconn.CommandTag{}, nil
}

func (s *recStubBatchResults) Query() (pgx.Rows, error) { return &recStubRows{}, nil }

func (s *recStubBatchResults) QueryRow() pgx.Row { return &recStubRow{} }

func (s *recStubBatchResults) Close() error { return nil }

type recStubRows struct {
	data [][]any
	idx  int
}

func (r *recStubRows) Close() {}

func (r *recStubRows) Err() error { return nil }

func (r *recStubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *recStubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *recStubRows) Next() bool {
	if len(r.data) == 0 || r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *recStubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return assignRow(r.data[r.idx-1], dest)
}

func (r *recStubRows) Values() ([]any, error) { return nil, nil }

func (r *recStubRows) RawValues() [][]byte { return nil }

func (r *recStubRows) Conn() *pgx.Conn { return nil }

type recStubRow struct {
	data []any
	err  error
}

func (r *recStubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignRow(r.data, dest)
}

func assignRow(row []any, dest []any) error {
	if len(row) != len(dest) {
		return fmt.Errorf("expected %d dest fields, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case **string:
			*ptr = row[i].(*string)
		case *float64:
			*ptr = row[i].(float64)
		case **float64:
			*ptr = row[i].(*float64)
		case *int:
			*ptr = row[i].(int)
		case *int16:
			*ptr = row[i].(int16)
		case *time.Time:
			*ptr = row[i].(time.Time)
		case **time.Time:
			*ptr = row[i].(*time.Time)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
