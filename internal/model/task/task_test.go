package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreListsOwnerTasksByStart(t *testing.T) {
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore([]Task{{ID: "2", OwnerID: "alice", Title: "later", Start: base.Add(time.Hour)}})
	store.Add(Task{ID: "1", OwnerID: "alice", Title: "first", Start: base})
	store.Add(Task{ID: "3", OwnerID: "bob", Title: "other", Start: base})

	tasks, err := store.ListTasks(context.Background(), "alice")

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "later", tasks[1].Title)
}
