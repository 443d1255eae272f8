package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Player struct {
	Id       string `json:"id"`
	Name     string `json:"name" binding:"required,max=50"`
	Number   int    `json:"number" binding:"min=0,max=99"`
	Position string `json:"position" binding:"max=20"`
}

// Team is persisted as a single JSON column on the owning game.
type Team struct {
	Id      string   `json:"id"`
	Name    string   `json:"name" binding:"required,max=50"`
	Logo    string   `json:"logo,omitempty" binding:"omitempty,url"`
	Players []Player `json:"players" binding:"dive"`
}

func (t Team) Value() (driver.Value, error) {
	bytes, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

func (t *Team) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*t = Team{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into Team", value)
	}
}

func (Team) GormDataType() string {
	return "json"
}

func (Team) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}
