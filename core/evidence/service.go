package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
	"github.com/rumboapp/rumbo/core/user"
)

var (
	ErrNotFound           = errors.New("evidencia no encontrada")
	ErrSubmissionNotFound = errors.New("envío no encontrado")
	ErrSubmissionExists   = errors.New("ya existe un envío para este trimestre")
	ErrQuarterNotEnabled  = errors.New("el trimestre no está habilitado para esta meta")
	ErrAlreadyGraded      = errors.New("la evidencia ya fue calificada")
	ErrNotOwner           = errors.New("la meta no pertenece al área del usuario")
)

type Repository interface {
	CreateEvidence(ctx context.Context, ev Evidence, exec ...core.DBExecutor) (Evidence, error)
	GetEvidence(ctx context.Context, id string, exec ...core.DBExecutor) (Evidence, error)
	GetEvidenceByMeta(ctx context.Context, metaID, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (Evidence, error)
	QueryEvidences(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) ([]Evidence, error)
	QueryEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) ([]Evidence, error)
	UpdateEvidence(ctx context.Context, ev Evidence, exec ...core.DBExecutor) (Evidence, error)
	DeleteEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) error
	CountGradedByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) (int, error)

	// StampEnvio ties the matching evidence rows to the submission and resets
	// them to pendiente. Returns the number of rows updated.
	StampEnvio(ctx context.Context, envioID, usuarioID string, metaIDs []string, trimestre, anio int, fechaEnvio time.Time, exec ...core.DBExecutor) (int, error)

	// CreateSubmission returns ErrSubmissionExists when the unique
	// (usuario, area, trimestre, anio) key is already taken.
	CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
	GetSubmission(ctx context.Context, usuarioID, areaID string, trimestre, anio int, exec ...core.DBExecutor) (Submission, error)
	GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
	QuerySubmissions(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]Submission, error)
	UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
	DeleteSubmission(ctx context.Context, id string, exec ...core.DBExecutor) error
}

type Service struct {
	db      core.DB
	repo    Repository
	users   user.Repository
	plans   plan.Repository
	blob    core.BlobStorage
	mailSvc core.EmailService
	conf    *core.Config
	logger  core.Logger
}

func NewService(
	db core.DB,
	repo Repository,
	users user.Repository,
	plans plan.Repository,
	blob core.BlobStorage,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		users:   users,
		plans:   plans,
		blob:    blob,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

// Upload stores the file and creates, or replaces, the evidence row for the
// goal. Re-uploading before grading swaps the stored file; the previous blob
// is removed best-effort after commit.
func (svc *Service) Upload(ctx context.Context, usr user.User, up Upload, filename string, size int64, file io.Reader) (Evidence, error) {
	row, err := svc.plans.GetRow(ctx, up.MetaID)
	if err != nil {
		return Evidence{}, err
	}
	if !usr.BelongsTo(row.AreaID) {
		return Evidence{}, ErrNotOwner
	}
	if !row.QuarterEnabled(up.Trimestre) {
		return Evidence{}, core.NewValidationError(ErrQuarterNotEnabled,
			core.FieldError{Field: "trimestre", Error: ErrQuarterNotEnabled.Error()})
	}

	anio := time.Now().UTC().Year()
	switch _, err := svc.repo.GetSubmission(ctx, usr.ID, row.AreaID, up.Trimestre, anio); errors.Cause(err) {
	case ErrSubmissionNotFound:
	case nil:
		return Evidence{}, core.NewConflictError(
			"ya existe un envío para este trimestre; elimínelo antes de volver a cargar evidencias")
	default:
		return Evidence{}, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Evidence{}, errors.Wrap(err, "reading file header")
	}
	head = head[:n]

	ctype, err := CheckFile(filename, size, head, svc.conf)
	if err != nil {
		return Evidence{}, err
	}

	key := ObjectKey(usr.ID, up.Trimestre, filename)
	url, err := svc.blob.Put(ctx, key, io.MultiReader(bytes.NewReader(head), file), ctype)
	if err != nil {
		return Evidence{}, errors.Wrap(err, "storing evidence file")
	}

	now := time.Now().UTC()
	var ev Evidence
	var prevKey string
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		prev, err := svc.repo.GetEvidenceByMeta(ctx, up.MetaID, usr.ID, up.Trimestre, anio, tx)
		switch errors.Cause(err) {
		case nil:
			if prev.IsGraded() {
				return core.NewConflictError(ErrAlreadyGraded.Error())
			}
			prevKey = prev.ArchivoKey
			prev.ArchivoURL = url
			prev.ArchivoKey = key
			prev.ArchivoNombre = filename
			prev.ArchivoTipo = ctype
			prev.ArchivoTamano = size
			prev.Descripcion = up.Descripcion
			prev.Estado = StatusPendiente
			prev.FechaEnvio = now
			ev, err = svc.repo.UpdateEvidence(ctx, prev, tx)
			return err
		case ErrNotFound:
			ev, err = svc.repo.CreateEvidence(ctx, Evidence{
				MetaID:        up.MetaID,
				UsuarioID:     usr.ID,
				Trimestre:     up.Trimestre,
				Anio:          anio,
				ArchivoURL:    url,
				ArchivoKey:    key,
				ArchivoNombre: filename,
				ArchivoTipo:   ctype,
				ArchivoTamano: size,
				Descripcion:   up.Descripcion,
				Estado:        StatusPendiente,
				FechaEnvio:    now,
			}, tx)
			return err
		default:
			return err
		}
	})
	if err != nil {
		// compensate the orphaned upload
		if derr := svc.blob.Delete(ctx, key); derr != nil {
			svc.logger.Warn("deleting orphaned evidence file", derr)
		}
		return Evidence{}, err
	}

	if prevKey != "" && prevKey != key {
		if derr := svc.blob.Delete(ctx, prevKey); derr != nil {
			svc.logger.Warn("deleting replaced evidence file", derr)
		}
	}
	return ev, nil
}

func (svc *Service) Query(ctx context.Context, usuarioID string, trimestre, anio int) ([]Evidence, error) {
	return svc.repo.QueryEvidences(ctx, usuarioID, trimestre, anio)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Evidence, error) {
	return svc.repo.GetEvidence(ctx, id)
}

// DownloadURL returns a time-limited signed URL for the stored file. Only the
// owner or an admin may fetch it.
func (svc *Service) DownloadURL(ctx context.Context, usr user.User, evidenceID string) (string, error) {
	ev, err := svc.repo.GetEvidence(ctx, evidenceID)
	if err != nil {
		return "", err
	}
	if !usr.IsAdmin() && ev.UsuarioID != usr.ID {
		return "", ErrNotFound
	}
	return svc.blob.SignedURL(ev.ArchivoKey, svc.conf.Storage.SignedURLTTL)
}

// SubmitQuarter finalizes the user's evidence for a quarter as one batch. All
// requested goals must have evidence uploaded, each with a non-empty
// descripcion. The unique submission key is enforced by the database; a
// duplicate surfaces as a conflict.
func (svc *Service) SubmitQuarter(ctx context.Context, usr user.User, sq SubmitQuarter) (Submission, error) {
	anio := time.Now().UTC().Year()

	existing, err := svc.repo.QueryEvidences(ctx, usr.ID, sq.Trimestre, anio)
	if err != nil {
		return Submission{}, err
	}
	byMeta := make(map[string]Evidence, len(existing))
	for _, ev := range existing {
		byMeta[ev.MetaID] = ev
	}
	var incomplete []string
	for _, id := range sq.MetaIDs {
		if ev, ok := byMeta[id]; !ok || strings.TrimSpace(ev.Descripcion) == "" {
			incomplete = append(incomplete, id)
		}
	}
	if len(incomplete) > 0 {
		return Submission{}, core.NewValidationError(
			errors.New("hay metas incompletas para este trimestre"),
			core.FieldError{Field: "meta_ids", Error: "metas sin evidencia o sin descripción: " + strings.Join(incomplete, ", ")})
	}

	now := time.Now().UTC()
	var sub Submission
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		sub, err = svc.repo.CreateSubmission(ctx, Submission{
			UsuarioID:  usr.ID,
			AreaID:     usr.AreaID.String,
			Trimestre:  sq.Trimestre,
			Anio:       anio,
			Estado:     StatusPendiente,
			FechaEnvio: now,
		}, tx)
		if errors.Cause(err) == ErrSubmissionExists {
			return core.NewConflictError(ErrSubmissionExists.Error())
		} else if err != nil {
			return err
		}

		n, err := svc.repo.StampEnvio(ctx, sub.ID, usr.ID, sq.MetaIDs, sq.Trimestre, anio, now, tx)
		if err != nil {
			return err
		}
		if n != len(sq.MetaIDs) {
			return errors.Errorf("stamped %d evidence rows, expected %d", n, len(sq.MetaIDs))
		}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (svc *Service) GetSubmission(ctx context.Context, usr user.User, trimestre, anio int) (Submission, error) {
	return svc.repo.GetSubmission(ctx, usr.ID, usr.AreaID.String, trimestre, anio)
}

// CanDeleteSubmission reports whether the quarter's submission can still be
// withdrawn, i.e. nothing in it has been graded yet.
func (svc *Service) CanDeleteSubmission(ctx context.Context, usr user.User, trimestre, anio int) (bool, error) {
	sub, err := svc.repo.GetSubmission(ctx, usr.ID, usr.AreaID.String, trimestre, anio)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionNotFound {
			return false, nil
		}
		return false, err
	}
	if sub.IsLocked() {
		return false, nil
	}
	graded, err := svc.repo.CountGradedByEnvio(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	return graded == 0, nil
}

// DeleteSubmission withdraws the quarter's submission and its evidence rows,
// enabling one re-submission cycle. Fails once any contained evidence has
// been graded.
func (svc *Service) DeleteSubmission(ctx context.Context, usr user.User, trimestre, anio int) error {
	sub, err := svc.repo.GetSubmission(ctx, usr.ID, usr.AreaID.String, trimestre, anio)
	if err != nil {
		return err
	}

	evs, err := svc.repo.QueryEvidencesByEnvio(ctx, sub.ID)
	if err != nil {
		return err
	}

	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		graded, err := svc.repo.CountGradedByEnvio(ctx, sub.ID, tx)
		if err != nil {
			return err
		}
		if sub.IsLocked() || graded > 0 {
			return core.NewConflictError(fmt.Sprintf(
				"no se puede eliminar el envío: %d meta(s) calificada(s); contacte a un administrador", graded))
		}
		if err = svc.repo.DeleteEvidencesByEnvio(ctx, sub.ID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteSubmission(ctx, sub.ID, tx)
	})
	if err != nil {
		return err
	}

	for _, ev := range evs {
		if derr := svc.blob.Delete(ctx, ev.ArchivoKey); derr != nil {
			svc.logger.Warn("deleting withdrawn evidence file", derr)
		}
	}
	return nil
}

// Grade applies the admin's review to an evidence row and locks its parent
// submission. A graded evidence is terminal and cannot be re-graded. The
// owner is notified best-effort.
func (svc *Service) Grade(ctx context.Context, evidenceID string, g Grade) (Evidence, error) {
	ev, err := svc.repo.GetEvidence(ctx, evidenceID)
	if err != nil {
		return Evidence{}, err
	}
	if ev.IsGraded() {
		return Evidence{}, core.NewConflictError(ErrAlreadyGraded.Error())
	}

	now := time.Now().UTC()
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		ev.Estado = g.Estado
		ev.Calificacion = null.IntFrom(*g.Calificacion)
		ev.ComentarioAdmin = null.StringFrom(g.Comentario)
		ev.FechaRevision = null.TimeFrom(now)
		var err error
		if ev, err = svc.repo.UpdateEvidence(ctx, ev, tx); err != nil {
			return err
		}

		if !ev.EnvioID.Valid {
			return nil
		}
		sub, err := svc.repo.GetSubmissionByID(ctx, ev.EnvioID.String, tx)
		if err != nil {
			return err
		}
		if sub.IsLocked() {
			return nil
		}
		sub.LockedAt = null.TimeFrom(now)
		_, err = svc.repo.UpdateSubmission(ctx, sub, tx)
		return err
	})
	if err != nil {
		return Evidence{}, err
	}

	if owner, uerr := svc.users.GetUser(ctx, user.GetFilter{ID: ev.UsuarioID}); uerr == nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: owner.Nombre, Address: owner.Email}},
			Subject:      "Evidencia calificada",
			TemplateName: "evidence-graded",
			TemplateData: struct {
				Nombre       string
				Archivo      string
				Estado       string
				Calificacion int
				Comentario   string
			}{owner.Nombre, ev.ArchivoNombre, ev.Estado, ev.Calificacion.Int, ev.ComentarioAdmin.String},
		})
	} else {
		svc.logger.Warn("looking up evidence owner for notification", uerr)
	}
	return ev, nil
}

// QueryForReview lists an area's submissions for the admin review screen.
func (svc *Service) QueryForReview(ctx context.Context, areaID string, trimestre, anio int) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, areaID, trimestre, anio)
}

func (svc *Service) QueryByEnvio(ctx context.Context, envioID string) ([]Evidence, error) {
	return svc.repo.QueryEvidencesByEnvio(ctx, envioID)
}
