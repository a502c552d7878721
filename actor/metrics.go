package actor

import (
	"sort"
	"sync/atomic"
	"time"
)

// Metrics 收集和暴露 Actor 系统的运行时指标。
// 指标包括消息计数、延迟分布、重启次数和运行时间等。
// 所有指标都使用原子操作，支持并发访问且无锁竞争。
// 本类型不提供 /metrics 端点；调用方通过 Snapshot 读取计数快照。
type Metrics struct {
	// startedAtUnix 系统启动时间的 Unix 时间戳
	startedAtUnix atomic.Int64
	// msgOut 发出的消息总数
	msgOut atomic.Uint64
	// msgIn 接收的消息总数
	msgIn atomic.Uint64
	// restarts Actor 重启的总次数
	restarts atomic.Uint64

	// latBuckets 延迟直方图的桶边界
	latBuckets []time.Duration
	// latCounts 每个延迟桶的计数
	latCounts []atomic.Uint64
	// latSumNS 延迟总和（纳秒），用于计算平均延迟
	latSumNS atomic.Uint64
}

// NewMetrics 创建一个新的指标收集器，使用预定义的延迟桶边界。
// 延迟桶覆盖从 10 微秒到 100 毫秒的范围，适合大多数 Actor 通信场景。
func NewMetrics() *Metrics {
	b := []time.Duration{
		10 * time.Microsecond,
		50 * time.Microsecond,
		100 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		2 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
	}
	return &Metrics{
		latBuckets: b,
		latCounts:  make([]atomic.Uint64, len(b)+1),
	}
}

// MarkStart 记录系统启动时间。
// 仅在首次调用时生效，后续调用被忽略。
func (m *Metrics) MarkStart() {
	if m.startedAtUnix.Load() == 0 {
		m.startedAtUnix.Store(time.Now().Unix())
	}
}

// IncOut 增加发出消息计数。
func (m *Metrics) IncOut() { m.msgOut.Add(1) }

// IncIn 增加接收消息计数。
func (m *Metrics) IncIn() { m.msgIn.Add(1) }

// IncRestart 增加 Actor 重启计数。
func (m *Metrics) IncRestart() { m.restarts.Add(1) }

// ObserveLatency 记录一次延迟观测值。
// 延迟被分配到相应的桶中，并累加到总延迟。
func (m *Metrics) ObserveLatency(d time.Duration) {
	if d < 0 {
		return
	}
	m.latSumNS.Add(uint64(d.Nanoseconds()))
	i := sort.Search(len(m.latBuckets), func(i int) bool { return d <= m.latBuckets[i] })
	m.latCounts[i].Add(1)
}

// MetricsSnapshot is the point-in-time copy of the counters that Snapshot
// returns, for a caller that has no business reaching into unexported
// fields.
type MetricsSnapshot struct {
	MsgOut, MsgIn, Restarts uint64
	LatencyBuckets          []time.Duration
	LatencyCounts           []uint64
	LatencySumNS            uint64
	StartedAtUnix           int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	counts := make([]uint64, len(m.latCounts))
	for i := range m.latCounts {
		counts[i] = m.latCounts[i].Load()
	}
	return MetricsSnapshot{
		MsgOut:         m.msgOut.Load(),
		MsgIn:          m.msgIn.Load(),
		Restarts:       m.restarts.Load(),
		LatencyBuckets: m.latBuckets,
		LatencyCounts:  counts,
		LatencySumNS:   m.latSumNS.Load(),
		StartedAtUnix:  m.startedAtUnix.Load(),
	}
}
