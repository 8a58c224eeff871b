package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/imkonsowa/restaurant-qa/events"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
)

const (
	outputPlugin = "wal2json"

	standbyInterval = 10 * time.Second
)

// walMessage is one wal2json (format version 1) transaction.
type walMessage struct {
	Change []walChange `json:"change"`
}

type walChange struct {
	Kind         string   `json:"kind"`
	Table        string   `json:"table"`
	ColumnNames  []string `json:"columnnames,omitempty"`
	ColumnValues []any    `json:"columnvalues,omitempty"`
	OldKeys      *walKeys `json:"oldkeys,omitempty"`
}

type walKeys struct {
	KeyNames  []string `json:"keynames"`
	KeyValues []any    `json:"keyvalues"`
}

// Publisher sends encoded events to the message stream.
type Publisher interface {
	PublishAsync(subject string, data []byte) error
}

type Listener struct {
	config    *config.Config
	publisher Publisher

	regularConn   *pgx.Conn
	replConn      *pgconn.PgConn
	clientXLogPos pglogrepl.LSN
}

func NewListener(cfg *config.Config, publisher Publisher) *Listener {
	return &Listener{
		config:    cfg,
		publisher: publisher,
	}
}

func (l *Listener) Run(ctx context.Context) error {
	slog.Info("starting WAL listener")

	var err error
	l.regularConn, err = pgx.Connect(ctx, l.config.Postgres.ConnStr())
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}

	if err := l.ensurePublication(ctx); err != nil {
		return err
	}

	slotExists, err := l.slotExists(ctx)
	if err != nil {
		return fmt.Errorf("check replication slot: %w", err)
	}

	l.replConn, err = pgconn.Connect(ctx, l.config.Postgres.ReplicationConnStr())
	if err != nil {
		return fmt.Errorf("connect for replication: %w", err)
	}

	sysident, err := pglogrepl.IdentifySystem(ctx, l.replConn)
	if err != nil {
		return fmt.Errorf("identify system: %w", err)
	}

	startLSN, err := l.resolveStartLSN(ctx, slotExists, sysident.XLogPos)
	if err != nil {
		return err
	}

	err = pglogrepl.StartReplication(ctx, l.replConn, l.config.Replication.Slot, startLSN,
		pglogrepl.StartReplicationOptions{
			PluginArgs: []string{
				"\"pretty-print\" 'false'",
				"\"include-xids\" 'false'",
				"\"include-timestamp\" 'false'",
				"\"include-lsn\" 'false'",
			},
		},
	)
	if err != nil {
		return fmt.Errorf("start replication: %w", err)
	}

	slog.Info("replication started", "slot", l.config.Replication.Slot, "lsn", startLSN)

	l.clientXLogPos = startLSN
	return l.listen(ctx)
}

func (l *Listener) listen(ctx context.Context) error {
	deadline := time.Now().Add(standbyInterval)

	for {
		if !time.Now().Before(deadline) {
			if err := l.sendStandbyStatus(ctx); err != nil {
				return fmt.Errorf("send standby status: %w", err)
			}
			deadline = time.Now().Add(standbyInterval)
		}

		receiveCtx, cancel := context.WithDeadline(ctx, deadline)
		raw, err := l.replConn.ReceiveMessage(receiveCtx)
		cancel()

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case pgconn.Timeout(err):
			continue
		default:
			return fmt.Errorf("receive message: %w", err)
		}

		switch m := raw.(type) {
		case *pgproto3.ErrorResponse:
			return fmt.Errorf("replication error: %s (%s)", m.Message, m.Code)
		case *pgproto3.CopyData:
			replyNow, err := l.handleCopyData(m.Data)
			if err != nil {
				return err
			}
			if replyNow {
				deadline = time.Time{}
			}
		}
	}
}

// handleCopyData advances the client position and publishes decoded
// changes. It reports whether the server asked for an immediate reply.
func (l *Listener) handleCopyData(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}

	switch data[0] {
	case pglogrepl.PrimaryKeepaliveMessageByteID:
		pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(data[1:])
		if err != nil {
			return false, fmt.Errorf("parse keepalive: %w", err)
		}
		l.advance(pkm.ServerWALEnd)
		return pkm.ReplyRequested, nil

	case pglogrepl.XLogDataByteID:
		xld, err := pglogrepl.ParseXLogData(data[1:])
		if err != nil {
			return false, fmt.Errorf("parse xlog data: %w", err)
		}

		changes, err := decodeWAL(xld.WALData)
		if err != nil {
			slog.Error("skipping undecodable wal2json payload", "err", err, "lsn", xld.WALStart)
		} else {
			l.processChanges(changes)
		}
		l.advance(xld.WALStart + pglogrepl.LSN(len(xld.WALData)))
	}

	return false, nil
}

func (l *Listener) advance(lsn pglogrepl.LSN) {
	if lsn > l.clientXLogPos {
		l.clientXLogPos = lsn
	}
}

func decodeWAL(data []byte) ([]walChange, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var msg walMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return msg.Change, nil
}

// catalogTables are the tables the chunk corpus is built from.
var catalogTables = map[string]bool{
	"restaurants": true,
	"menu_items":  true,
}

func (l *Listener) processChanges(changes []walChange) {
	for _, event := range catalogEvents(changes, time.Now()) {
		data, err := event.Encode()
		if err != nil {
			slog.Error("encode catalog event", "err", err)
			continue
		}

		if err := l.publisher.PublishAsync(l.config.Nats.CatalogSubject, data); err != nil {
			slog.Error("publish to nats", "err", err, "subject", l.config.Nats.CatalogSubject)
		}
	}
}

// catalogEvents maps row changes of catalog tables to change events.
func catalogEvents(changes []walChange, at time.Time) []events.CatalogChanged {
	var out []events.CatalogChanged
	for _, change := range changes {
		if !catalogTables[change.Table] {
			continue
		}

		switch change.Kind {
		case "insert", "update", "delete":
		default:
			continue
		}

		out = append(out, events.CatalogChanged{
			Table: change.Table,
			Kind:  change.Kind,
			ID:    extractID(change),
			At:    at,
		})
	}

	return out
}

func (l *Listener) Close(ctx context.Context) {
	if l.regularConn != nil {
		l.regularConn.Close(ctx)
	}
	if l.replConn != nil {
		l.replConn.Close(ctx)
	}
}

func (l *Listener) ensurePublication(ctx context.Context) error {
	var exists bool
	err := l.regularConn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_publication WHERE pubname = $1)",
		l.config.Replication.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check publication: %w", err)
	}

	if !exists {
		_, err = l.regularConn.Exec(ctx,
			fmt.Sprintf("CREATE PUBLICATION %s FOR TABLE restaurants, menu_items", pgx.Identifier{l.config.Replication.Name}.Sanitize()))
		if err != nil {
			return fmt.Errorf("create publication: %w", err)
		}
		slog.Info("created publication", "name", l.config.Replication.Name)
	}
	return nil
}

func (l *Listener) slotExists(ctx context.Context) (bool, error) {
	var exists bool
	err := l.regularConn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_replication_slots WHERE slot_name = $1)",
		l.config.Replication.Slot).Scan(&exists)
	return exists, err
}

func (l *Listener) getSlotLSN(ctx context.Context) (pglogrepl.LSN, error) {
	var lsnStr *string
	err := l.regularConn.QueryRow(ctx,
		"SELECT confirmed_flush_lsn FROM pg_replication_slots WHERE slot_name = $1",
		l.config.Replication.Slot).Scan(&lsnStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("slot %s does not exist", l.config.Replication.Slot)
		}
		return 0, err
	}
	if lsnStr == nil {
		return 0, nil
	}
	return pglogrepl.ParseLSN(*lsnStr)
}

func (l *Listener) resolveStartLSN(ctx context.Context, slotExists bool, sysLSN pglogrepl.LSN) (pglogrepl.LSN, error) {
	if slotExists {
		lsn, err := l.getSlotLSN(ctx)
		if err != nil || lsn == 0 {
			return sysLSN, nil
		}
		return lsn, nil
	}

	result, err := pglogrepl.CreateReplicationSlot(ctx, l.replConn, l.config.Replication.Slot, outputPlugin,
		pglogrepl.CreateReplicationSlotOptions{Temporary: false})
	if err != nil {
		return 0, fmt.Errorf("create replication slot: %w", err)
	}

	slog.Info("created replication slot", "name", l.config.Replication.Slot)
	return pglogrepl.ParseLSN(result.ConsistentPoint)
}

func (l *Listener) sendStandbyStatus(ctx context.Context) error {
	return pglogrepl.SendStandbyStatusUpdate(ctx, l.replConn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: l.clientXLogPos,
	})
}

// extractID reads the id column, or the old key of a delete.
func extractID(change walChange) uint64 {
	names, values := change.ColumnNames, change.ColumnValues
	if change.OldKeys != nil {
		names, values = change.OldKeys.KeyNames, change.OldKeys.KeyValues
	}

	for i, name := range names {
		if name == "id" && i < len(values) {
			if v, ok := values[i].(float64); ok {
				return uint64(v)
			}
		}
	}
	return 0
}
