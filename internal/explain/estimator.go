package explain

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/malbeclabs/oracle-mcp/internal/metrics"
)

const (
	defaultCostThreshold  = 100000
	defaultCleanupTimeout = 5 * time.Second

	// STATEMENT_ID is VARCHAR2(30) in the stock PLAN_TABLE.
	statementIDPrefix = "MCP"
	statementIDLength = 27
)

// Session is the slice of a database session the estimator borrows for one
// call. Every statement of a call must run on the same session; *sql.Conn
// satisfies it.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Step is one PLAN_TABLE row, in the order the database returned it.
type Step struct {
	ID          int64  `json:"id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Depth       int64  `json:"depth"`
	Operation   string `json:"operation"`
	Options     string `json:"options,omitempty"`
	ObjectOwner string `json:"object_owner,omitempty"`
	ObjectName  string `json:"object_name,omitempty"`
	Cost        *int64 `json:"cost,omitempty"`
	Cardinality *int64 `json:"cardinality,omitempty"`
	Bytes       *int64 `json:"bytes,omitempty"`
}

// Plan is the outcome of a successful estimate.
type Plan struct {
	StatementID   string   `json:"statement_id"`
	EstimatedCost int64    `json:"estimated_cost"`
	Steps         []Step   `json:"steps"`
	Display       []string `json:"display,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

type Config struct {
	Logger *slog.Logger

	// CostThreshold is the headline cost above which a warning is attached.
	CostThreshold int64
	// CleanupTimeout bounds the PLAN_TABLE delete, which runs detached from
	// the caller's cancellation.
	CleanupTimeout time.Duration
	// NewStatementID overrides the per-call statement id generator.
	NewStatementID func() string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.CostThreshold < 0 {
		return fmt.Errorf("cost threshold must not be negative")
	}
	if cfg.CostThreshold == 0 {
		cfg.CostThreshold = defaultCostThreshold
	}
	if cfg.CleanupTimeout == 0 {
		cfg.CleanupTimeout = defaultCleanupTimeout
	}
	if cfg.NewStatementID == nil {
		cfg.NewStatementID = NewStatementID
	}
	return nil
}

type Estimator struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate estimator config: %w", err)
	}
	return &Estimator{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// NewStatementID returns a fresh identifier for tagging PLAN_TABLE rows.
func NewStatementID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return statementIDPrefix + id[:statementIDLength-len(statementIDPrefix)]
}

// Check normalizes query and rejects what cannot be explained without
// touching the database: empty input and statement kinds EXPLAIN PLAN would
// not leave unexecuted.
func Check(query string) (string, StatementKind, error) {
	query = normalize(query)
	if query == "" {
		return "", StatementUnknown, newError(KindValidation, "query is empty", nil)
	}
	kind, keyword := Classify(query)
	if !kind.Explainable() {
		return "", kind, newError(KindUnsupportedStatement,
			fmt.Sprintf("%s statements (%s) cannot be validated without executing them", kind, keyword), nil)
	}
	return query, kind, nil
}

// Estimate asks the database for the execution plan of query without running
// it and returns the plan with its headline cost. Rows written to PLAN_TABLE
// under the call's statement id are deleted before Estimate returns, on every
// path.
func (e *Estimator) Estimate(ctx context.Context, sess Session, query string) (*Plan, error) {
	query, kind, err := Check(query)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, newError(KindConnection, "no database session", nil)
	}

	id := e.cfg.NewStatementID()
	log := e.log.With("statementID", id)

	defer e.cleanup(ctx, log, sess, id)

	log.Debug("explain: submitting statement", "kind", kind.String())
	if _, err := sess.ExecContext(ctx, fmt.Sprintf("EXPLAIN PLAN SET STATEMENT_ID = '%s' FOR %s", id, query)); err != nil {
		return nil, classify(err)
	}

	steps, err := readSteps(ctx, sess, id)
	if err != nil {
		return nil, classify(err)
	}
	if len(steps) == 0 {
		return nil, newError(KindEmptyPlan, fmt.Sprintf("no plan rows found for statement id %s", id), nil)
	}

	display, err := readDisplay(ctx, sess, id)
	if err != nil {
		return nil, classify(err)
	}

	plan := &Plan{
		StatementID:   id,
		EstimatedCost: headlineCost(steps),
		Steps:         steps,
		Display:       display,
	}
	if plan.EstimatedCost > e.cfg.CostThreshold {
		plan.Warning = fmt.Sprintf("The estimated cost of this query is %d, which may impact database performance.", plan.EstimatedCost)
		log.Warn("explain: estimated cost above threshold", "cost", plan.EstimatedCost, "threshold", e.cfg.CostThreshold)
	}
	return plan, nil
}

// cleanup deletes the call's PLAN_TABLE rows. A failure here does not change
// the call's outcome.
func (e *Estimator) cleanup(ctx context.Context, log *slog.Logger, sess Session, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CleanupTimeout)
	defer cancel()

	if _, err := sess.ExecContext(ctx, `DELETE FROM PLAN_TABLE WHERE STATEMENT_ID = :1`, id); err != nil {
		metrics.PlanCleanupFailuresTotal.Inc()
		log.Warn("explain: failed to clean up plan rows", "error", err)
	}
}

const selectPlanSQL = `
	SELECT ID, PARENT_ID, DEPTH, OPERATION, OPTIONS, OBJECT_OWNER, OBJECT_NAME, COST, CARDINALITY, BYTES
	FROM PLAN_TABLE
	WHERE STATEMENT_ID = :1
	ORDER BY ID`

func readSteps(ctx context.Context, sess Session, id string) ([]Step, error) {
	rows, err := sess.QueryContext(ctx, selectPlanSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			s                                   Step
			parentID, cost, cardinality, nbytes sql.NullInt64
			depth                               sql.NullInt64
			operation, options, owner, object   sql.NullString
		)
		if err := rows.Scan(&s.ID, &parentID, &depth, &operation, &options, &owner, &object, &cost, &cardinality, &nbytes); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		s.ParentID = nullInt(parentID)
		s.Depth = depth.Int64
		s.Operation = operation.String
		s.Options = options.String
		s.ObjectOwner = owner.String
		s.ObjectName = object.String
		s.Cost = nullInt(cost)
		s.Cardinality = nullInt(cardinality)
		s.Bytes = nullInt(nbytes)
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func readDisplay(ctx context.Context, sess Session, id string) ([]string, error) {
	rows, err := sess.QueryContext(ctx, `SELECT PLAN_TABLE_OUTPUT FROM TABLE(DBMS_XPLAN.DISPLAY(NULL, :1, 'TYPICAL'))`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line sql.NullString
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan plan output: %w", err)
		}
		lines = append(lines, line.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// headlineCost is the cost of the root step, the one without a parent. A root
// without a cost counts as zero.
func headlineCost(steps []Step) int64 {
	root := steps[0]
	for _, s := range steps {
		if s.ParentID == nil {
			root = s
			break
		}
	}
	if root.Cost == nil {
		return 0
	}
	return *root.Cost
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
