package service

import "sync"

// quota — глобальный счётчик новых записей прогона.
//
// Слот резервируется перед дорогим обогащением и затем либо фиксируется
// (запись создана), либо освобождается (вставка не удалась). Пока есть
// незавершённые резервы, способные исчерпать лимит, новые резервы ждут,
// поэтому записей создаётся ровно target даже при параллельных источниках.
type quota struct {
	mu      sync.Mutex
	cond    *sync.Cond
	target  int
	created int
	pending int
}

func newQuota(target int) *quota {
	q := &quota{target: target}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// reserve возвращает false, если лимит уже достигнут.
func (q *quota) reserve() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.created >= q.target {
			return false
		}

		if q.created+q.pending < q.target {
			q.pending++
			return true
		}

		q.cond.Wait()
	}
}

func (q *quota) commit() {
	q.mu.Lock()
	q.pending--
	q.created++
	q.mu.Unlock()

	q.cond.Broadcast()
}

func (q *quota) release() {
	q.mu.Lock()
	q.pending--
	q.mu.Unlock()

	q.cond.Broadcast()
}

func (q *quota) reached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.created >= q.target
}
