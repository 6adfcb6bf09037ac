package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"

    "github.com/iliyamo/munon-registry/internal/model"
)

// HackathonRepo persists registry changes to MySQL.  It implements
// registry.Journal: every Record* method runs in its own transaction and
// only returns nil after the commit, so the registry applies a change in
// memory only when it is durable.  LoadAll rebuilds the registry at startup.
//
// Tables:
//  hackathons             – one row per record, metrics stored as JSON.
//  hackathon_participants – one row per joined address with the fee paid.
//  hackathon_sponsorships – one row per sponsor payment.
type HackathonRepo struct {
    db *sql.DB
}

// NewHackathonRepo returns a new HackathonRepo bound to the provided database.
func NewHackathonRepo(db *sql.DB) *HackathonRepo { return &HackathonRepo{db: db} }

// DB exposes the underlying handle for callers that need to share the pool.
func (r *HackathonRepo) DB() *sql.DB { return r.db }

// InitSchema creates the registry tables when they do not exist.
func (r *HackathonRepo) InitSchema(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS hackathons (
            id               BIGINT UNSIGNED PRIMARY KEY,
            name             VARCHAR(255)    NOT NULL,
            image_hash       VARCHAR(255)    NOT NULL,
            host             CHAR(42)        NOT NULL,
            registration_fee BIGINT UNSIGNED NOT NULL,
            metrics          JSON            NOT NULL,
            pot              BIGINT UNSIGNED NOT NULL DEFAULT 0,
            status           TINYINT UNSIGNED NOT NULL,
            created_at       DATETIME        NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS hackathon_participants (
            seq          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT UNIQUE,
            hackathon_id BIGINT UNSIGNED NOT NULL,
            address      CHAR(42)        NOT NULL,
            fee_paid     BIGINT UNSIGNED NOT NULL,
            joined_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (hackathon_id, address)
        )`,
        `CREATE TABLE IF NOT EXISTS hackathon_sponsorships (
            id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
            hackathon_id BIGINT UNSIGNED NOT NULL,
            sponsor      VARCHAR(64)     NOT NULL,
            amount       BIGINT UNSIGNED NOT NULL,
            created_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
            INDEX idx_sponsorships_hackathon (hackathon_id)
        )`,
    }
    for _, s := range stmts {
        if _, err := r.db.ExecContext(ctx, s); err != nil {
            return fmt.Errorf("init schema: %w", err)
        }
    }
    return nil
}

// RecordCreate inserts a new hackathon row.
func (r *HackathonRepo) RecordCreate(ctx context.Context, h model.Hackathon) error {
    metrics, err := json.Marshal(h.Metrics)
    if err != nil {
        return fmt.Errorf("marshal metrics: %w", err)
    }
    _, err = r.db.ExecContext(ctx,
        `INSERT INTO hackathons (id, name, image_hash, host, registration_fee, metrics, pot, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        h.ID, h.Name, h.ImageHash, h.Host, h.RegistrationFee, string(metrics), h.Pot, uint8(h.Status),
        h.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
    )
    return err
}

// RecordJoin stores the participant row.
func (r *HackathonRepo) RecordJoin(ctx context.Context, id uint64, participant string, payment uint64) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO hackathon_participants (hackathon_id, address, fee_paid) VALUES (?, ?, ?)`,
        id, participant, payment)
    return err
}

// RecordSponsor stores the sponsorship and bumps the pot in one transaction.
func (r *HackathonRepo) RecordSponsor(ctx context.Context, id uint64, sponsor string, amount uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx,
        `INSERT INTO hackathon_sponsorships (hackathon_id, sponsor, amount) VALUES (?, ?, ?)`,
        id, sponsor, amount); err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx, `UPDATE hackathons SET pot = pot + ? WHERE id = ?`, amount, id)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return fmt.Errorf("hackathon %d missing from store", id)
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// RecordFinish flips the stored status to FINISHED.
func (r *HackathonRepo) RecordFinish(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE hackathons SET status = ? WHERE id = ? AND status = ?`,
        uint8(model.StatusFinished), id, uint8(model.StatusActive))
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return fmt.Errorf("hackathon %d not active in store", id)
    }
    return nil
}

// LoadAll returns every stored hackathon ordered by id together with the
// balance held by the registry (all fees paid plus all sponsor payments).
func (r *HackathonRepo) LoadAll(ctx context.Context) ([]model.Hackathon, uint64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, name, image_hash, host, registration_fee, metrics, pot, status, created_at
         FROM hackathons ORDER BY id`)
    if err != nil {
        return nil, 0, err
    }
    var (
        out   []model.Hackathon
        index = map[uint64]int{}
    )
    for rows.Next() {
        var (
            h       model.Hackathon
            metrics []byte
            status  uint8
        )
        if err := rows.Scan(&h.ID, &h.Name, &h.ImageHash, &h.Host, &h.RegistrationFee, &metrics, &h.Pot, &status, &h.CreatedAt); err != nil {
            rows.Close()
            return nil, 0, err
        }
        if err := json.Unmarshal(metrics, &h.Metrics); err != nil {
            rows.Close()
            return nil, 0, fmt.Errorf("hackathon %d metrics: %w", h.ID, err)
        }
        h.Status = model.Status(status)
        h.Participants = []string{}
        index[h.ID] = len(out)
        out = append(out, h)
    }
    if err := rows.Err(); err != nil {
        rows.Close()
        return nil, 0, err
    }
    if err := rows.Close(); err != nil {
        return nil, 0, err
    }

    prow, err := r.db.QueryContext(ctx,
        `SELECT hackathon_id, address FROM hackathon_participants ORDER BY seq`)
    if err != nil {
        return nil, 0, err
    }
    defer prow.Close()
    for prow.Next() {
        var (
            hid  uint64
            addr string
        )
        if err := prow.Scan(&hid, &addr); err != nil {
            return nil, 0, err
        }
        i, ok := index[hid]
        if !ok {
            return nil, 0, fmt.Errorf("participant %s references unknown hackathon %d", addr, hid)
        }
        out[i].Participants = append(out[i].Participants, addr)
    }
    if err := prow.Err(); err != nil {
        return nil, 0, err
    }

    var balance uint64
    err = r.db.QueryRowContext(ctx,
        `SELECT
            COALESCE((SELECT SUM(fee_paid) FROM hackathon_participants), 0) +
            COALESCE((SELECT SUM(amount) FROM hackathon_sponsorships), 0)`).Scan(&balance)
    if err != nil {
        return nil, 0, err
    }
    return out, balance, nil
}
