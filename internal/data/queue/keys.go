package queue

import "strings"

// keys derives the Redis keys of one named queue as {prefix}:{queue}:{suffix}.
// The naming mirrors Bull so keys are easy to find with redis-cli, but the
// structure is this package's own: wait is RPUSH/LMOVE LEFT (FIFO) and there
// are no meta or marker keys, so Bull workers cannot consume these queues.
type keys struct {
	base string
}

func newKeys(prefix, name string) keys {
	return keys{base: strings.TrimSuffix(prefix, ":") + ":" + name + ":"}
}

func (k keys) id() string        { return k.base + "id" }
func (k keys) wait() string      { return k.base + "wait" }
func (k keys) active() string    { return k.base + "active" }
func (k keys) delayed() string   { return k.base + "delayed" }
func (k keys) completed() string { return k.base + "completed" }
func (k keys) failed() string    { return k.base + "failed" }

func (k keys) job(id string) string { return k.base + id }

// isStateKeyID reports whether id names one of the queue's own keys rather
// than a job. Job ids are allocated from the id counter and never collide.
func isStateKeyID(id string) bool {
	switch id {
	case "id", "wait", "active", "delayed", "completed", "failed":
		return true
	}
	return false
}
