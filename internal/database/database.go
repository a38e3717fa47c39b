package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"casinoclient/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

// Service archives completed Double rounds seen on the push channel.
type Service interface {
	Health() map[string]string
	Close() error
	SaveRound(ctx context.Context, round models.DoubleRound) error
	RecentRounds(ctx context.Context, limit int) ([]models.DoubleRound, error)
	DB() *sql.DB
}

type service struct {
	db *sql.DB
}

var (
	database = os.Getenv("ARCHIVE_DB_DATABASE")
	password = os.Getenv("ARCHIVE_DB_PASSWORD")
	username = os.Getenv("ARCHIVE_DB_USERNAME")
	port     = getEnv("ARCHIVE_DB_PORT", "5432")
	host     = os.Getenv("ARCHIVE_DB_HOST")
	schema   = getEnv("ARCHIVE_DB_SCHEMA", "public")
)

// Enabled reports whether an archive database is configured.
func Enabled() bool {
	return host != ""
}

func New() Service {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.WithField("component", "database").WithError(err).Fatal("Failed to open archive database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &service{db: db}
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	if dbStats.OpenConnections > 8 {
		stats["message"] = "The database is experiencing heavy load."
	}
	return stats
}

func (s *service) Close() error {
	log.WithFields(log.Fields{"component": "database", "database": database}).Info("Disconnected from database")
	return s.db.Close()
}

// SaveRound stores a completed round and its bets. Saving the same round twice is a no-op.
func (s *service) SaveRound(ctx context.Context, round models.DoubleRound) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO double_rounds (id, status, winning_color, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		round.ID, string(round.Status), string(round.WinningColor), round.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", round.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, bet := range round.Bets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO double_bets (id, round_id, user_id, username, amount, color, status, winnings)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			bet.ID, round.ID, bet.UserID, bet.Username, bet.Amount, string(bet.Color), string(bet.Status), bet.Winnings)
		if err != nil {
			return fmt.Errorf("insert bet %s: %w", bet.ID, err)
		}
	}

	return tx.Commit()
}

// RecentRounds returns the newest archived rounds first, bets included.
func (s *service) RecentRounds(ctx context.Context, limit int) ([]models.DoubleRound, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.status, r.winning_color, r.created_at,
		        b.id, b.user_id, b.username, b.amount, b.color, b.status, b.winnings
		 FROM (SELECT * FROM double_rounds ORDER BY created_at DESC LIMIT $1) r
		 LEFT JOIN double_bets b ON b.round_id = r.id
		 ORDER BY r.created_at DESC, b.id`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.DoubleRound
	for rows.Next() {
		var (
			round                                 models.DoubleRound
			betID, userID, name, color, betStatus sql.NullString
			amount, winnings                      sql.NullInt64
		)
		if err := rows.Scan(&round.ID, &round.Status, &round.WinningColor, &round.CreatedAt,
			&betID, &userID, &name, &amount, &color, &betStatus, &winnings); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}

		if n := len(rounds); n == 0 || rounds[n-1].ID != round.ID {
			round.Bets = []models.DoubleBet{}
			rounds = append(rounds, round)
		}
		if !betID.Valid {
			continue
		}
		last := &rounds[len(rounds)-1]
		last.Bets = append(last.Bets, models.DoubleBet{
			ID:       betID.String,
			RoundID:  round.ID,
			UserID:   userID.String,
			Username: name.String,
			Amount:   amount.Int64,
			Color:    models.Color(color.String),
			Status:   models.BetStatus(betStatus.String),
			Winnings: winnings.Int64,
		})
	}
	return rounds, rows.Err()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
