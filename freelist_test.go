package tcmalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// slotBacking allocates n real, pointer-sized, 8-byte-aligned slots so the
// intrusive list can store its "next" pointer in the first word of each.
func slotBacking(n int) []unsafe.Pointer {
	words := make([]uintptr, n)
	slots := make([]unsafe.Pointer, n)
	for i := range words {
		slots[i] = unsafe.Pointer(&words[i])
	}
	return slots
}

func TestIntrusiveList_PushPop(t *testing.T) {
	slots := slotBacking(3)
	var l intrusiveList
	assert.True(t, l.empty())

	l.push(slots[0])
	l.push(slots[1])
	l.push(slots[2])
	assert.Equal(t, uint32(3), l.len)

	assert.Equal(t, slots[2], l.pop())
	assert.Equal(t, slots[1], l.pop())
	assert.Equal(t, slots[0], l.pop())
	assert.True(t, l.empty())
	assert.Nil(t, l.pop())
}

func TestIntrusiveList_PushBatch(t *testing.T) {
	slots := slotBacking(4)
	var batch intrusiveList
	batch.push(slots[0])
	batch.push(slots[1])
	batch.push(slots[2])
	head, count := batch.detachAll()
	assert.Equal(t, uint32(3), count)

	var l intrusiveList
	l.push(slots[3])
	l.pushBatch(head, count)
	assert.Equal(t, uint32(4), l.len)
}

func TestIntrusiveList_DetachHalf(t *testing.T) {
	slots := slotBacking(5)
	var l intrusiveList
	for _, s := range slots {
		l.push(s)
	}

	detached, count := l.detachHalf()
	assert.Equal(t, uint32(2), count)
	assert.Equal(t, uint32(3), l.len)
	assert.NotNil(t, detached)
}

func TestIntrusiveList_DetachAll(t *testing.T) {
	slots := slotBacking(2)
	var l intrusiveList
	l.push(slots[0])
	l.push(slots[1])

	head, count := l.detachAll()
	assert.Equal(t, uint32(2), count)
	assert.True(t, l.empty())
	assert.NotNil(t, head)
}

func TestIntrusiveList_RemoveMatching(t *testing.T) {
	slots := slotBacking(4)
	var l intrusiveList
	for _, s := range slots {
		l.push(s)
	}

	match := map[unsafe.Pointer]bool{slots[1]: true, slots[3]: true}
	removed := l.removeMatching(func(p unsafe.Pointer) bool { return match[p] })

	assert.Len(t, removed, 2)
	assert.Equal(t, uint32(2), l.len)

	remaining := map[unsafe.Pointer]bool{}
	for cur := l.head; cur != nil; cur = *(*unsafe.Pointer)(cur) {
		remaining[cur] = true
	}
	assert.True(t, remaining[slots[0]])
	assert.True(t, remaining[slots[2]])
	assert.False(t, remaining[slots[1]])
	assert.False(t, remaining[slots[3]])
}
