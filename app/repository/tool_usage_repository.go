package repository

import (
	"sort"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type toolUsageRepository struct {
	db *gorm.DB
}

// NewToolUsageRepository creates a tool usage rollup repository
func NewToolUsageRepository(db *gorm.DB) ToolUsageRepository {
	return &toolUsageRepository{db: db}
}

// AddCounts adds the given per-tool increments to the rows of one day,
// creating rows that do not exist yet.
func (r *toolUsageRepository) AddCounts(day string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tools := make([]string, 0, len(counts))
	for tool := range counts {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, tool := range tools {
			inc := counts[tool]
			if inc == 0 {
				continue
			}
			row := models.ToolUsageDaily{Day: day, Tool: tool, Uses: inc}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "day"}, {Name: "tool"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"uses": gorm.Expr("uses + ?", inc),
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *toolUsageRepository) ListByDay(day string) ([]models.ToolUsageDaily, error) {
	var rows []models.ToolUsageDaily
	err := r.db.Where("day = ?", day).Order("tool").Find(&rows).Error
	return rows, err
}

// TotalsSince sums uses per tool for all days >= day (YYYY-MM-DD sorts lexically).
func (r *toolUsageRepository) TotalsSince(day string) (map[string]int64, error) {
	var rows []struct {
		Tool  string
		Total int64
	}
	err := r.db.Model(&models.ToolUsageDaily{}).
		Select("tool, SUM(uses) as total").
		Where("day >= ?", day).
		Group("tool").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Tool] = row.Total
	}
	return totals, nil
}
