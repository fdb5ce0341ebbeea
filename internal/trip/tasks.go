package trip

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// TasksView edits the "tasks" document.
type TasksView struct {
	doc[TaskList]
}

// OpenTasks binds the task list.
func OpenTasks(env *Env) *TasksView {
	return &TasksView{bind(env, KindTasks, TaskList{})}
}

// Tab implements View.
func (v *TasksView) Tab() Tab { return TabTasks }

// Tasks returns the current list.
func (v *TasksView) Tasks() TaskList {
	return v.b.Value()
}

// Add appends a task and returns its new id.
func (v *TasksView) Add(t Task) (ksid.ID, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return 0, errors.New("title is required")
	}
	if err := validateDate(t.DueDate); err != nil {
		return 0, err
	}
	t.ID = ksid.NewID()
	t.CompletedBy = nil
	t.CreatedAt = v.env.now()
	v.update(func(l TaskList) (TaskList, bool) {
		return append(slices.Clone(l), t), true
	})
	return t.ID, nil
}

// Toggle marks the task done or not done for name.
func (v *TasksView) Toggle(id ksid.ID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	v.update(func(l TaskList) (TaskList, bool) {
		i := findByID(l, id, taskID)
		if i < 0 {
			return l, false
		}
		next := slices.Clone(l)
		next[i].CompletedBy = next[i].CompletedBy.Toggled(name)
		return next, true
	})
}

// Delete removes the task.
func (v *TasksView) Delete(id ksid.ID) {
	v.update(func(l TaskList) (TaskList, bool) {
		i := findByID(l, id, taskID)
		if i < 0 {
			return l, false
		}
		return slices.Delete(slices.Clone(l), i, i+1), true
	})
}

func taskID(t *Task) ksid.ID { return t.ID }
