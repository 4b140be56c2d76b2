package outbox

import (
	"sync"
	"testing"

	"gorm.io/gorm/schema"
)

// TestMessage_CommitOrderKey 中继按主键升序投递，
// 主键必须是自增列，同一时间戳写入的多条记录才能保持提交序
func TestMessage_CommitOrderKey(t *testing.T) {
	sch, err := schema.Parse(&Message{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	pk := sch.PrioritizedPrimaryField
	if pk == nil || pk.Name != "ID" {
		t.Fatalf("expected ID as primary key, got %+v", pk)
	}
	if !pk.AutoIncrement {
		t.Error("primary key must be auto-increment to preserve commit order")
	}

	if _, ok := sch.FieldsByName["EventID"]; !ok {
		t.Error("event id column missing from outbox message")
	}
}
