package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/oai-provider/internal/domain/model"
	"github.com/bigkaa/goartstore/oai-provider/internal/oaipmh"
)

// recordColumns — столбцы oai_records без метаданных; столбец метаданных
// выбирается по формату через metadataColumn.
const recordColumns = `record_id::text, datestamp, deleted, set_specs`

// RecordRepository — DataSource поверх таблиц oai_records и oai_sets.
type RecordRepository struct {
	db   DBTX
	repo model.RepositoryInfo
}

// NewRecordRepository создаёт репозиторий записей.
// repo — описание репозитория для Identify (из конфигурации).
func NewRecordRepository(db DBTX, repo model.RepositoryInfo) *RecordRepository {
	return &RecordRepository{db: db, repo: repo}
}

// Repository возвращает описание репозитория.
func (r *RecordRepository) Repository() model.RepositoryInfo {
	return r.repo
}

// IsValidIdentifier — record_id имеет тип UUID.
func (r *RecordRepository) IsValidIdentifier(nativeID string) bool {
	if len(nativeID) != 36 {
		return false
	}
	_, err := uuid.Parse(nativeID)
	return err == nil
}

// ListSets возвращает все наборы, упорядоченные по setSpec.
func (r *RecordRepository) ListSets(ctx context.Context) ([]model.Set, error) {
	rows, err := r.db.Query(ctx, `SELECT set_spec, set_name FROM oai_sets ORDER BY set_spec`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения наборов: %w", err)
	}
	defer rows.Close()

	var sets []model.Set
	for rows.Next() {
		var s model.Set
		if err := rows.Scan(&s.Spec, &s.Name); err != nil {
			return nil, fmt.Errorf("ошибка сканирования набора: %w", err)
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации наборов: %w", err)
	}
	return sets, nil
}

// GetRecord возвращает запись по record_id или oaipmh.ErrRecordNotFound.
func (r *RecordRepository) GetRecord(ctx context.Context, nativeID string, format model.MetadataFormat) (*model.Record, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM oai_records WHERE record_id = $1`,
		recordColumns, metadataColumn(format))

	rec, err := r.scanRecord(r.db.QueryRow(ctx, query, nativeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oaipmh.ErrRecordNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// ListRecords возвращает страницу выборки и общее количество совпадений.
// Порядок стабилен между страницами: datestamp, затем record_id.
func (r *RecordRepository) ListRecords(ctx context.Context, q model.ListQuery) (*model.RecordsList, error) {
	where, args := buildListWhere(q, 1)
	argNum := len(args) + 1

	dataQuery := fmt.Sprintf(
		`SELECT %s, %s FROM oai_records %s ORDER BY datestamp, record_id LIMIT $%d OFFSET $%d`,
		recordColumns, metadataColumn(q.Format), where, argNum, argNum+1,
	)
	args = append(args, q.Rows, q.Start)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	list := &model.RecordsList{}
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		list.Records = append(list.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации записей: %w", err)
	}

	// Общее количество (с теми же фильтрами, без LIMIT/OFFSET)
	countWhere, countArgs := buildListWhere(q, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM oai_records %s`, countWhere)
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&list.NumFound); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}

	return list, nil
}

// scanRecord читает строку recordColumns + метаданные.
func (r *RecordRepository) scanRecord(row pgx.Row) (*model.Record, error) {
	var (
		id       string
		metadata string
		rec      model.Record
	)
	if err := row.Scan(&id, &rec.Datestamp, &rec.Deleted, &rec.Sets, &metadata); err != nil {
		return nil, err
	}
	rec.Identifier = oaipmh.FormatIdentifier(r.repo.IdentifierPrefix, id)
	rec.Datestamp = rec.Datestamp.UTC()
	if !rec.Deleted {
		rec.Metadata = metadata
	}
	return &rec, nil
}

// buildListWhere строит WHERE-условие и аргументы для выборки.
// startArg — номер первого $-параметра (для корректной нумерации).
func buildListWhere(q model.ListQuery, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	if !q.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("datestamp >= $%d", argNum))
		args = append(args, q.From)
		argNum++
	}

	if !q.Until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("datestamp <= $%d", argNum))
		args = append(args, q.Until)
		argNum++
	}

	if q.Set != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(set_specs)", argNum))
		args = append(args, q.Set)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// metadataColumn возвращает столбец метаданных формата (whitelist для SQL).
func metadataColumn(format model.MetadataFormat) string {
	switch format {
	case model.FormatQDC:
		return "metadata_qdc"
	case model.FormatOAIDataCite:
		return "metadata_oai_datacite"
	default:
		return "metadata_oai_dc"
	}
}
