package tui

// Option configures a Model.
type Option func(*Model)

// WithPerson sets who new tasks are attributed to.
func WithPerson(person string) Option {
	return func(m *Model) {
		m.person = person
	}
}

// WithChanges makes the model reload whenever ch signals. The model stops
// listening once ch is closed.
func WithChanges(ch <-chan struct{}) Option {
	return func(m *Model) {
		m.changes = ch
	}
}

// WithConfirmDelete toggles the delete confirmation prompt.
func WithConfirmDelete(confirm bool) Option {
	return func(m *Model) {
		m.confirmDelete = confirm
	}
}
