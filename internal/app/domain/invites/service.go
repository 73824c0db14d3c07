package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/domain/progress"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
	"github.com/FACorreiaa/go-runworld/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-runworld/internal/pkg/filelock"
)

// Pass grant issued on a successful activation.
const (
	passDurationDays = 365
	passTier         = "explorer"
	passSource       = "manual"
	passNotes        = "alpha"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the single-use activation-code registry. The invite table is
// one shared JSON document; every read-modify-write holds the registry file
// lock end to end, with the table re-read inside the lock.
type Service interface {
	Activate(ctx context.Context, userKey, code string) (*models.UserDocument, error)
	Revoke(ctx context.Context, code string) error
	Issue(ctx context.Context, n int, prefix, issuedTo string) ([]string, error)
	Stats(ctx context.Context) (*models.InviteStats, error)
	Seed(ctx context.Context, seed models.InviteTable) error
}

type ServiceImpl struct {
	path        string
	lockTimeout time.Duration
	progress    progress.Service
	logger      *zap.Logger
	now         func() time.Time
}

func NewServiceImpl(path string, lockTimeout time.Duration, progressService progress.Service, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		path:        path,
		lockTimeout: lockTimeout,
		progress:    progressService,
		logger:      logger,
		now:         time.Now,
	}
}

// Activate consumes an invite code for the given user. The code flip to
// "used" happens inside the lock; the pass grant on the per-user document
// happens after release, since user documents are single-writer per key.
func (s *ServiceImpl) Activate(ctx context.Context, userKey, code string) (*models.UserDocument, error) {
	l := s.logger.With(zap.String("method", "Activate"), zap.String("user_key", userKey))

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrValidation
	}

	today := s.now().Format(models.DateLayout)

	err := s.withLock(ctx, func() error {
		table, err := s.readTable()
		if err != nil {
			return err
		}

		rec, ok := table[code]
		switch {
		case !ok:
			return models.ErrInviteNotFound
		case rec.Status == models.InviteRevoked:
			return models.ErrInviteRevoked
		case rec.Status == models.InviteUsed:
			return models.ErrInviteUsed
		}

		rec.Status = models.InviteUsed
		if rec.ActivatedAt == "" {
			rec.ActivatedAt = today
		}
		table[code] = rec
		return s.writeTable(table)
	})
	if err != nil {
		return nil, err
	}

	doc, err := s.grantPass(ctx, userKey, code)
	if err != nil {
		l.Error("Code consumed but pass grant failed", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	metrics.Get().InviteActivations.Add(ctx, 1)
	l.Info("Invite activated", zap.String("code", code))
	return doc, nil
}

func (s *ServiceImpl) grantPass(ctx context.Context, userKey, code string) (*models.UserDocument, error) {
	doc, err := s.progress.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	starts := now.Format(models.DateLayout)
	ends := now.AddDate(0, 0, passDurationDays).Format(models.DateLayout)

	doc.Profile.Auth.Mode = "invite"
	doc.Profile.Auth.InviteCode = &code
	doc.Profile.Pass = &models.Pass{
		Tier:     passTier,
		Status:   models.PassStatusActive,
		StartsAt: &starts,
		EndsAt:   &ends,
		Source:   passSource,
		Notes:    passNotes,
	}
	progress.RefreshAccess(doc, now)

	if err := s.progress.Save(ctx, userKey, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Revoke marks a code revoked. Revoking an already-revoked code is a no-op.
func (s *ServiceImpl) Revoke(ctx context.Context, code string) error {
	return s.withLock(ctx, func() error {
		table, err := s.readTable()
		if err != nil {
			return err
		}

		rec, ok := table[code]
		if !ok {
			return models.ErrInviteNotFound
		}
		if rec.Status == models.InviteRevoked {
			return nil
		}

		rec.Status = models.InviteRevoked
		table[code] = rec
		return s.writeTable(table)
	})
}

// Issue appends n fresh codes named <prefix>-NNN, numbering on from the
// highest existing index under that prefix.
func (s *ServiceImpl) Issue(ctx context.Context, n int, prefix, issuedTo string) ([]string, error) {
	if n <= 0 || strings.TrimSpace(prefix) == "" {
		return nil, models.ErrValidation
	}

	today := s.now().Format(models.DateLayout)
	var created []string

	err := s.withLock(ctx, func() error {
		table, err := s.readTable()
		if err != nil {
			return err
		}

		idx := nextIndex(table, prefix)
		created = created[:0]
		for range n {
			code := fmt.Sprintf("%s-%03d", prefix, idx)
			for _, exists := table[code]; exists; _, exists = table[code] {
				idx++
				code = fmt.Sprintf("%s-%03d", prefix, idx)
			}
			table[code] = models.InviteRecord{
				Status:   models.InviteNew,
				IssuedTo: issuedTo,
				IssuedAt: today,
			}
			created = append(created, code)
			idx++
		}
		return s.writeTable(table)
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(created)
	s.logger.Info("Invite codes issued", zap.Int("count", len(created)), zap.String("prefix", prefix))
	return created, nil
}

// Stats counts codes per status. Read under the lock so a concurrent
// activation cannot be half-counted.
func (s *ServiceImpl) Stats(ctx context.Context) (*models.InviteStats, error) {
	var stats models.InviteStats
	err := s.withLock(ctx, func() error {
		table, err := s.readTable()
		if err != nil {
			return err
		}
		for _, rec := range table {
			switch rec.Status {
			case models.InviteNew:
				stats.New++
			case models.InviteUsed:
				stats.Used++
			case models.InviteRevoked:
				stats.Revoked++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Seed installs the given table only when the registry is still empty.
// Callers treat failures as non-fatal: seeding must never block startup.
func (s *ServiceImpl) Seed(ctx context.Context, seed models.InviteTable) error {
	if len(seed) == 0 {
		return nil
	}
	return s.withLock(ctx, func() error {
		table, err := s.readTable()
		if err != nil {
			return err
		}
		if len(table) > 0 {
			return nil
		}
		return s.writeTable(seed)
	})
}

func (s *ServiceImpl) withLock(ctx context.Context, fn func() error) error {
	lock := filelock.New(s.path+".lock", s.lockTimeout, s.logger)
	if err := lock.Lock(ctx); err != nil {
		if errors.Is(err, filelock.ErrTimeout) {
			metrics.Get().LockTimeoutsTotal.Add(ctx, 1)
			s.logger.Warn("Invite registry busy", zap.String("path", s.path))
		}
		return err
	}
	defer lock.Unlock()

	return fn()
}

// readTable loads the invite table from disk. A missing file is an empty
// registry, not an error.
func (s *ServiceImpl) readTable() (models.InviteTable, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.InviteTable{}, nil
		}
		return nil, pkgerrors.Wrapf(err, "read invites %s", s.path)
	}

	var table models.InviteTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse invites %s", s.path)
	}
	if table == nil {
		table = models.InviteTable{}
	}
	return table, nil
}

// writeTable persists atomically: temp file in the same directory, fsync,
// rename over the target.
func (s *ServiceImpl) writeTable(table models.InviteTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal invites: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrapf(err, "create invites dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "rw_invites_*.tmp")
	if err != nil {
		return pkgerrors.Wrap(err, "create invites temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "write invites temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "sync invites temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "close invites temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "replace invites %s", s.path)
	}
	return nil
}

// nextIndex finds the highest numeric suffix among codes with the prefix.
func nextIndex(table models.InviteTable, prefix string) int {
	max := 0
	for code := range table {
		rest, ok := strings.CutPrefix(code, prefix+"-")
		if !ok {
			continue
		}
		if idx, err := strconv.Atoi(rest); err == nil && idx > max {
			max = idx
		}
	}
	return max + 1
}
