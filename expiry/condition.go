package expiry

import (
	"time"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/table"
)

// CurrentTime is the single attribute of the probe event a prune tick
// matches cache records against.
const CurrentTime = "expiry_current_time"

// probeDefinition describes the probe event carrying the tick's time.
var probeDefinition = record.Definition{
	Attributes: []record.Attribute{{Name: CurrentTime, Type: record.TypeLong}},
}

// ExpiryExpression builds "current time - timestamp added > retention" over
// the cache table cacheID. Times are in milliseconds.
func ExpiryExpression(cacheID string, retention time.Duration) condition.Expression {
	return condition.Compare{
		Left: condition.Subtract{
			Left:  condition.Var(CurrentTime),
			Right: condition.TableVar(cacheID, record.TimestampAdded),
		},
		Op:    condition.GreaterThan,
		Right: condition.Long(retention.Milliseconds()),
	}
}

// CompileExpiryCondition compiles the expiry predicate for cache within the
// query namespace tables.
func CompileExpiryCondition(cache *table.CacheTable, tables map[string]table.Table, retention time.Duration) (*condition.Condition, error) {
	def := cache.Definition()
	return condition.Compile(ExpiryExpression(def.ID, retention), condition.Scope{
		Probe:  probeDefinition,
		Table:  def,
		Tables: table.Definitions(tables),
	})
}

func probeAt(now time.Time) record.Record {
	return record.Record{Values: []any{now.UnixMilli()}}
}
