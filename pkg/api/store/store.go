package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OmniLens/OmniLens-sub000/pkg/config"
)

// Store provides persistence for dashboard resources. Every
// repository and workflow operation is scoped by user id.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Users.
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error

	// Sessions.
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	UpdateSessionLastActive(ctx context.Context, id uint, t time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Tracked repositories.
	ListRepositories(ctx context.Context, userID uint) ([]Repository, error)
	ListAllRepositories(ctx context.Context) ([]Repository, error)
	GetRepository(
		ctx context.Context, userID uint, slug string,
	) (*Repository, error)
	CreateRepository(ctx context.Context, repo *Repository) error
	DeleteRepository(ctx context.Context, userID uint, slug string) error

	// Workflow cache.
	ListWorkflows(
		ctx context.Context, userID uint, slug string,
	) ([]Workflow, error)
	ReplaceWorkflows(
		ctx context.Context, userID uint, slug string, workflows []Workflow,
	) error

	// Seeding from config.
	SeedUsers(ctx context.Context, users []config.BasicAuthUser) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Session{},
		&Repository{},
		&Workflow{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Users ---

func (s *store) GetUserByID(
	ctx context.Context, id uint,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return &user, nil
}

func (s *store) GetUserByLogin(
	ctx context.Context, login string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("login = ?", login).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}

	return &user, nil
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

// --- Sessions ---

func (s *store) CreateSession(
	ctx context.Context, session *Session,
) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

func (s *store) GetSessionByToken(
	ctx context.Context, token string,
) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&session).Error; err != nil {
		return nil, fmt.Errorf("getting session by token: %w", err)
	}

	return &session, nil
}

func (s *store) UpdateSessionLastActive(
	ctx context.Context, id uint, t time.Time,
) error {
	if err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("last_active_at", t).Error; err != nil {
		return fmt.Errorf("updating session last active: %w", err)
	}

	return nil
}

func (s *store) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (s *store) DeleteExpiredSessions(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&Session{})
	if result.Error != nil {
		return fmt.Errorf("deleting expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).
			Debug("Cleaned up expired sessions")
	}

	return nil
}

// --- Tracked repositories ---

func (s *store) ListRepositories(
	ctx context.Context, userID uint,
) ([]Repository, error) {
	var repos []Repository
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	return repos, nil
}

// ListAllRepositories returns every tracked repository across all
// users; used by the background refresher.
func (s *store) ListAllRepositories(
	ctx context.Context,
) ([]Repository, error) {
	var repos []Repository
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("listing all repositories: %w", err)
	}

	return repos, nil
}

func (s *store) GetRepository(
	ctx context.Context, userID uint, slug string,
) (*Repository, error) {
	var repo Repository
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, slug).
		First(&repo).Error; err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}

	return &repo, nil
}

func (s *store) CreateRepository(
	ctx context.Context, repo *Repository,
) error {
	if err := s.db.WithContext(ctx).Create(repo).Error; err != nil {
		return fmt.Errorf("creating repository: %w", err)
	}

	return nil
}

// DeleteRepository removes a tracked repository and cascades to the
// user's cached workflow rows for the slug.
func (s *store) DeleteRepository(
	ctx context.Context, userID uint, slug string,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("user_id = ? AND slug = ?", userID, slug).
			Delete(&Repository{})
		if result.Error != nil {
			return fmt.Errorf("deleting repository: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.
			Where("user_id = ? AND slug = ?", userID, slug).
			Delete(&Workflow{}).Error; err != nil {
			return fmt.Errorf("deleting cached workflows: %w", err)
		}

		return nil
	})
}

// --- Workflow cache ---

func (s *store) ListWorkflows(
	ctx context.Context, userID uint, slug string,
) ([]Workflow, error) {
	var workflows []Workflow
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, slug).
		Order("workflow_id ASC").
		Find(&workflows).Error; err != nil {
		return nil, fmt.Errorf("listing cached workflows: %w", err)
	}

	return workflows, nil
}

// ReplaceWorkflows swaps the cached workflow set for (user, slug) in a
// single transaction.
func (s *store) ReplaceWorkflows(
	ctx context.Context, userID uint, slug string, workflows []Workflow,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND slug = ?", userID, slug).
			Delete(&Workflow{}).Error; err != nil {
			return fmt.Errorf("clearing cached workflows: %w", err)
		}

		if len(workflows) == 0 {
			return nil
		}

		now := time.Now().UTC()

		for i := range workflows {
			workflows[i].UserID = userID
			workflows[i].Slug = slug
			workflows[i].CachedAt = now
		}

		if err := tx.Create(&workflows).Error; err != nil {
			return fmt.Errorf("caching workflows: %w", err)
		}

		return nil
	})
}

// --- Seeding ---

// SeedUsers upserts config-sourced users. Only users with
// source="config" are updated; users created via GitHub login are
// preserved.
func (s *store) SeedUsers(
	ctx context.Context, users []config.BasicAuthUser,
) error {
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Username, err)
		}

		var existing User

		result := s.db.WithContext(ctx).
			Where("login = ? AND source = ?", u.Username, SourceConfig).
			First(&existing)

		if result.Error == nil {
			existing.PasswordHash = string(hash)

			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return fmt.Errorf("updating config user %q: %w", u.Username, err)
			}
		} else {
			newUser := User{
				Login:        u.Username,
				PasswordHash: string(hash),
				Source:       SourceConfig,
			}

			if err := s.db.WithContext(ctx).
				Where("login = ?", u.Username).
				FirstOrCreate(&newUser).Error; err != nil {
				return fmt.Errorf("seeding config user %q: %w", u.Username, err)
			}
		}
	}

	s.log.WithField("count", len(users)).
		Info("Seeded users from config")

	return nil
}
