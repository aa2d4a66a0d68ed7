package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ramify/internal/controlplane"
	"github.com/dropDatabas3/ramify/internal/metrics"
	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// PrimaryRepo es el repositorio del store primario (pool compartido,
// uso concurrente seguro). Errores del primario SIEMPRE propagan.
type PrimaryRepo interface {
	Insert(ctx context.Context, r *Record) error
	// Get retorna ErrNotFound si el record no existe.
	Get(ctx context.Context, id string) (*Record, error)
	UpdatePayload(ctx context.Context, id string, payload []byte) error
	SetBranch(ctx context.Context, id, branchID string) error
	SetBranchEndpoint(ctx context.Context, id, endpoint string) error
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
}

// BranchStore es una conexión de datos a una branch puntual. Las
// conexiones son por operación (o cacheadas corto por el dialer);
// la corrección no depende del cache.
type BranchStore interface {
	// UpsertPayload inserta, o si la key ya existe pisa SOLO la columna
	// payload: la branch copy-on-write ya tiene el resto de la fila.
	UpsertPayload(ctx context.Context, recordID string, payload []byte) error
	GetPayload(ctx context.Context, recordID string) ([]byte, error)
	Close()
}

// BranchDialer abre conexiones a un endpoint de branch.
type BranchDialer interface {
	Dial(ctx context.Context, endpoint string) (BranchStore, error)
}

// defaultBranchTimeout cota dura por llamada a branch: una branch
// colgada no puede bloquear el retorno del resultado primario ya
// confirmado.
const defaultBranchTimeout = 3 * time.Second

// Store es el store replicado de records. Máquina de estados por
// record, manejada por la presencia de la referencia de branch:
// Unbranched → Branch-pending → Branched.
type Store struct {
	primary PrimaryRepo
	dialer  BranchDialer
	prov    controlplane.Provisioner

	branchTimeout time.Duration
	log           *zap.Logger
}

// Option configura el Store.
type Option func(*Store)

// WithBranchTimeout fija la cota por llamada de branch.
func WithBranchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.branchTimeout = d
		}
	}
}

// NewStore crea el store. prov puede ser nil (branching deshabilitado:
// todo opera primary-only).
func NewStore(primary PrimaryRepo, dialer BranchDialer, prov controlplane.Provisioner, opts ...Option) *Store {
	s := &Store{
		primary:       primary,
		dialer:        dialer,
		prov:          prov,
		branchTimeout: defaultBranchTimeout,
		log:           logger.Named("record"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create crea el record una única vez (top-level o fork). Después sólo
// se muta el payload in place, nunca se recrea.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := &Record{
		ID:             uuid.NewString(),
		OwnerSessionID: in.OwnerSessionID,
		Payload:        in.Payload,
		CreatedAt:      time.Now().UTC(),
	}
	if in.Kind == KindFork {
		parent := in.ParentRecordID
		origin := in.BranchOriginNodeID
		r.ParentRecordID = &parent
		r.BranchOriginNodeID = &origin
	}

	if err := s.primary.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("record created", logger.RecordID(r.ID), logger.String("kind", string(in.Kind)))
	return r, nil
}

// GetMeta retorna los atributos del record desde el primario (sin
// resolver branch). Para chequeos de ownership y estado.
func (s *Store) GetMeta(ctx context.Context, id string) (*Record, error) {
	return s.primary.Get(ctx, id)
}

// ListForSession lista los records de una sesión. Sólo metadata
// primaria: no se resuelven branches acá.
func (s *Store) ListForSession(ctx context.Context, sessionID string) ([]Record, error) {
	return s.primary.ListBySession(ctx, sessionID)
}

// Read lee el record. El primario es autoritativo para existencia; si
// el record tiene endpoint de branch conocido, la lectura de branch
// gana (es la copia viva una vez que empezó la exploración) y el
// primario queda como fallback frío ante cualquier falla, sin error.
func (s *Store) Read(ctx context.Context, id string) (*ReadResult, error) {
	r, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// branch-pending: chequeo on-demand, puede promover a Branched
	if r.BranchPending() {
		s.promote(ctx, r)
	}

	if r.Branched() {
		if payload, ok := s.branchRead(ctx, *r.BranchEndpoint, id); ok {
			metrics.RecordReads.WithLabelValues(string(ProvenanceBranch)).Inc()
			return &ReadResult{Payload: payload, Provenance: ProvenanceBranch}, nil
		}
		// falla de branch: fallback silencioso al payload primario ya leído
		metrics.BranchSoftFailures.Inc()
	}

	metrics.RecordReads.WithLabelValues(string(ProvenanceMain)).Inc()
	return &ReadResult{Payload: r.Payload, Provenance: ProvenanceMain}, nil
}

// Update escribe el payload. Protocolo:
//  1. primario primero, keyed por record id; falla primaria es fatal
//     para toda la operación (el primario es la durabilidad).
//  2. si Branched, upsert best-effort en la branch con timeout acotado.
//     Sin retry: una falla soft es aceptable y NUNCA falla la escritura
//     total — se reporta en el status.
func (s *Store) Update(ctx context.Context, id string, payload []byte) (WriteStatus, error) {
	r, err := s.primary.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if err := s.primary.UpdatePayload(ctx, id, payload); err != nil {
		return "", err
	}

	if !r.Branched() {
		metrics.RecordWrites.WithLabelValues(string(WriteMain)).Inc()
		return WriteMain, nil
	}

	if err := s.branchWrite(ctx, *r.BranchEndpoint, id, payload); err != nil {
		// referencia stale (branch borrada out-of-band) cae acá también:
		// intentar, fallar soft, reportar main-only. No detectamos ni
		// limpiamos la referencia.
		s.log.Warn("branch write failed, degrading to main-only",
			logger.RecordID(id),
			logger.Endpoint(*r.BranchEndpoint),
			logger.Err(err),
		)
		metrics.BranchSoftFailures.Inc()
		metrics.RecordWrites.WithLabelValues(string(WriteMainOnly)).Inc()
		return WriteMainOnly, nil
	}

	metrics.RecordWrites.WithLabelValues(string(WriteBoth)).Inc()
	return WriteBoth, nil
}

// CreateBranchFor pide aislamiento para el record. Idempotente hacia el
// control plane: si el record ya tiene branch, retorna la referencia
// almacenada (crear tiene side effects; el retry es decisión del caller).
// No bloquea esperando readiness: endpoint vacío es normal.
func (s *Store) CreateBranchFor(ctx context.Context, id, name string) (*BranchRef, error) {
	r, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.BranchID != nil {
		ref := &BranchRef{BranchID: *r.BranchID}
		if r.Branched() {
			ref.Endpoint = *r.BranchEndpoint
		} else if s.promote(ctx, r); r.Branched() {
			ref.Endpoint = *r.BranchEndpoint
		}
		return ref, nil
	}

	if s.prov == nil {
		return nil, ErrBranchingDisabled
	}

	branchID, err := s.prov.CreateBranch(ctx, controlplane.CreateBranchInput{DisplayName: name})
	if err != nil {
		// ProvisioningFailed propaga: el caller decide si degrada
		return nil, err
	}
	if err := s.primary.SetBranch(ctx, id, branchID); err != nil {
		return nil, err
	}
	r.BranchID = &branchID

	ref := &BranchRef{BranchID: branchID}
	// un poll inmediato: a veces el endpoint ya está
	if s.promote(ctx, r); r.Branched() {
		ref.Endpoint = *r.BranchEndpoint
	}
	return ref, nil
}

// promote chequea el control plane por el endpoint de una branch
// pendiente y lo persiste si apareció. Best-effort: cualquier error es
// soft y el record sigue operando primary-only.
func (s *Store) promote(ctx context.Context, r *Record) {
	if s.prov == nil || r.BranchID == nil {
		return
	}
	b, err := s.prov.GetBranch(ctx, *r.BranchID)
	if err != nil || b.Endpoint == "" {
		return
	}
	if err := s.primary.SetBranchEndpoint(ctx, r.ID, b.Endpoint); err != nil {
		s.log.Warn("persist branch endpoint failed", logger.RecordID(r.ID), logger.Err(err))
		return
	}
	ep := b.Endpoint
	r.BranchEndpoint = &ep
	s.log.Info("branch promoted", logger.RecordID(r.ID), logger.BranchID(*r.BranchID), logger.Endpoint(ep))
}

// branchCtx deriva el contexto para llamadas de branch: cota dura de
// timeout y desacoplado de la cancelación del caller — si el caller
// cancela después del commit primario, el éxito parcial es un estado
// terminal aceptado (main-only), no algo a deshacer.
func (s *Store) branchCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.branchTimeout)
}

func (s *Store) branchWrite(ctx context.Context, endpoint, id string, payload []byte) error {
	bctx, cancel := s.branchCtx(ctx)
	defer cancel()

	conn, err := s.dialer.Dial(bctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.UpsertPayload(bctx, id, payload)
}

func (s *Store) branchRead(ctx context.Context, endpoint, id string) ([]byte, bool) {
	bctx, cancel := s.branchCtx(ctx)
	defer cancel()

	conn, err := s.dialer.Dial(bctx, endpoint)
	if err != nil {
		s.log.Debug("branch dial failed", logger.Endpoint(endpoint), logger.Err(err))
		return nil, false
	}
	defer conn.Close()

	payload, err := conn.GetPayload(bctx, id)
	if err != nil {
		s.log.Debug("branch read failed", logger.Endpoint(endpoint), logger.Err(err))
		return nil, false
	}
	return payload, true
}
