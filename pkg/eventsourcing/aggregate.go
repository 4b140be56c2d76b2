package eventsourcing

// Aggregate 聚合根需要实现的事件折叠接口。
// Apply 必须是确定性的纯状态变更：同一事件流重放两次得到完全相同的状态。
type Aggregate interface {
	AggregateID() string
	Apply(event DomainEvent)
}

// AggregateRoot 聚合根公共机制：版本号与待提交事件队列。
// 具体聚合内嵌它，命令方法通过 ApplyChange 发出事件。
type AggregateRoot struct {
	version int64
	changes []DomainEvent
}

// Version 当前版本号（含未提交事件），只增不减
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// SetVersion 由仓储在快照恢复时调用
func (a *AggregateRoot) SetVersion(v int64) {
	a.version = v
}

// BaseVersion 加载时的版本号，即提交时的期望版本
func (a *AggregateRoot) BaseVersion() int64 {
	return a.version - int64(len(a.changes))
}

// ApplyChange 本地应用事件并入队等待提交。
// 事件先折叠进状态，版本号随之递增并写回事件。
func (a *AggregateRoot) ApplyChange(owner Aggregate, event DomainEvent) {
	owner.Apply(event)
	a.version++
	event.SetVersion(a.version)
	a.changes = append(a.changes, event)
}

// Replay 按序折叠历史事件，恢复出提交后的精确状态
func (a *AggregateRoot) Replay(owner Aggregate, events []DomainEvent) {
	for _, event := range events {
		owner.Apply(event)
		a.version = event.Version()
	}
}

// GetUncommittedEvents 返回待提交事件
func (a *AggregateRoot) GetUncommittedEvents() []DomainEvent {
	return a.changes
}

// MarkCommitted 提交成功后清空待提交队列
func (a *AggregateRoot) MarkCommitted() {
	a.changes = nil
}
