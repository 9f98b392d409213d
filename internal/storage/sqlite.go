package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/paularlott/logger"
	_ "modernc.org/sqlite"

	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/pager"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// Compile-time interface check
var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements Storage with a SQLite database file
type SQLiteStorage struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	pageSize int
	log      logger.Logger
}

// NewSQLiteStorage opens (and creates if needed) the inventory database at path
func NewSQLiteStorage(path string, pageSize int, l logger.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:       db,
		path:     path,
		pageSize: pageSize,
		log:      log.OrNull(l),
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	ss.log.Debug("Inventory database opened", "path", path)
	return ss, nil
}

// initSchema creates the database schema
func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// Path returns the database file location
func (ss *SQLiteStorage) Path() string {
	return ss.path
}

// Subnet returns a subnet with its tags and IPv6 blocks
func (ss *SQLiteStorage) Subnet(ctx context.Context, id string) (*model.Subnet, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var subnet model.Subnet
	err := ss.db.QueryRowContext(ctx, `
		SELECT id, name, cidr, vpc_id, availability_zone
		FROM subnets WHERE id = ?
	`, id).Scan(&subnet.ID, &subnet.Name, &subnet.CIDR, &subnet.VpcID, &subnet.AvailabilityZone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inventory.ErrSubnetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying subnet: %w", err)
	}

	if err := ss.loadSubnetDetails(ctx, &subnet); err != nil {
		return nil, err
	}
	return &subnet, nil
}

// ListSubnets returns every imported subnet ordered by id
func (ss *SQLiteStorage) ListSubnets(ctx context.Context) ([]model.Subnet, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, name, cidr, vpc_id, availability_zone
		FROM subnets ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying subnets: %w", err)
	}
	defer rows.Close()

	var subnets []model.Subnet
	for rows.Next() {
		var s model.Subnet
		if err := rows.Scan(&s.ID, &s.Name, &s.CIDR, &s.VpcID, &s.AvailabilityZone); err != nil {
			return nil, fmt.Errorf("scanning subnet: %w", err)
		}
		subnets = append(subnets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range subnets {
		if err := ss.loadSubnetDetails(ctx, &subnets[i]); err != nil {
			return nil, err
		}
	}
	return subnets, nil
}

func (ss *SQLiteStorage) loadSubnetDetails(ctx context.Context, subnet *model.Subnet) error {
	rows, err := ss.db.QueryContext(ctx, `SELECT key, value FROM subnet_tags WHERE subnet_id = ? ORDER BY key`, subnet.ID)
	if err != nil {
		return fmt.Errorf("querying subnet tags: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return fmt.Errorf("scanning subnet tag: %w", err)
		}
		if subnet.Tags == nil {
			subnet.Tags = make(map[string]string)
		}
		subnet.Tags[key] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = ss.db.QueryContext(ctx, `SELECT cidr FROM subnet_ipv6_cidrs WHERE subnet_id = ? ORDER BY cidr`, subnet.ID)
	if err != nil {
		return fmt.Errorf("querying subnet ipv6 blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var block string
		if err := rows.Scan(&block); err != nil {
			return fmt.Errorf("scanning subnet ipv6 block: %w", err)
		}
		subnet.IPv6CIDRs = append(subnet.IPv6CIDRs, block)
	}
	return rows.Err()
}

// InterfacePages lists interface rows of the subnet in insertion order. The
// cursor is the sequence number of the last row of the previous page.
func (ss *SQLiteStorage) InterfacePages(subnetID string) pager.PageFunc[model.Interface] {
	return func(ctx context.Context, cursor string) (pager.Page[model.Interface], error) {
		var after int64
		if cursor != "" {
			v, err := strconv.ParseInt(cursor, 10, 64)
			if err != nil || v < 0 {
				return pager.Page[model.Interface]{}, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
			}
			after = v
		}

		ss.mu.RLock()
		defer ss.mu.RUnlock()

		rows, err := ss.db.QueryContext(ctx, `
			SELECT seq, id, subnet_id, private_ip, status, interface_type, description, is_primary
			FROM interfaces
			WHERE subnet_id = ? AND seq > ?
			ORDER BY seq
			LIMIT ?
		`, subnetID, after, ss.pageSize)
		if err != nil {
			return pager.Page[model.Interface]{}, fmt.Errorf("querying interfaces: %w", err)
		}
		defer rows.Close()

		var (
			page    pager.Page[model.Interface]
			lastSeq int64
		)
		for rows.Next() {
			var iface model.Interface
			if err := rows.Scan(&lastSeq, &iface.ID, &iface.SubnetID, &iface.PrivateIP,
				&iface.Status, &iface.Type, &iface.Description, &iface.Primary); err != nil {
				return pager.Page[model.Interface]{}, fmt.Errorf("scanning interface: %w", err)
			}
			page.Items = append(page.Items, iface)
		}
		if err := rows.Err(); err != nil {
			return pager.Page[model.Interface]{}, err
		}

		if len(page.Items) == ss.pageSize {
			page.Next = strconv.FormatInt(lastSeq, 10)
		}
		return page, nil
	}
}

// Import replaces the stored inventory of the snapshot's subnet
func (ss *SQLiteStorage) Import(ctx context.Context, snap *model.Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	s := snap.Subnet
	if _, err := tx.ExecContext(ctx, `DELETE FROM subnets WHERE id = ?`, s.ID); err != nil {
		return fmt.Errorf("clearing subnet: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subnets (id, name, cidr, vpc_id, availability_zone)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.CIDR, s.VpcID, s.AvailabilityZone); err != nil {
		return fmt.Errorf("inserting subnet: %w", err)
	}

	for key, value := range s.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subnet_tags (subnet_id, key, value) VALUES (?, ?, ?)`, s.ID, key, value); err != nil {
			return fmt.Errorf("inserting subnet tag: %w", err)
		}
	}
	for _, block := range s.IPv6CIDRs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO subnet_ipv6_cidrs (subnet_id, cidr) VALUES (?, ?)`, s.ID, block); err != nil {
			return fmt.Errorf("inserting subnet ipv6 block: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interfaces (id, subnet_id, private_ip, status, interface_type, description, is_primary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, private_ip) DO UPDATE SET
			subnet_id = excluded.subnet_id,
			status = excluded.status,
			interface_type = excluded.interface_type,
			description = excluded.description,
			is_primary = excluded.is_primary
	`)
	if err != nil {
		return fmt.Errorf("preparing interface insert: %w", err)
	}
	defer stmt.Close()

	for _, iface := range snap.Interfaces {
		if _, err := stmt.ExecContext(ctx, iface.ID, s.ID, iface.PrivateIP, iface.Status,
			iface.Type, iface.Description, iface.Primary); err != nil {
			return fmt.Errorf("inserting interface %s: %w", iface.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}

	ss.log.Info("Inventory imported", "subnet_id", s.ID, "interfaces", len(snap.Interfaces))
	return nil
}
