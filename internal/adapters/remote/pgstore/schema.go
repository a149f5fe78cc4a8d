package pgstore

// Notification channels raised by the row triggers.
const (
	tasksChannel      = "workboard_tasks"
	activitiesChannel = "workboard_activities"
)

// schema creates the tables and the triggers feeding LISTEN/NOTIFY. Payloads
// carry only the row id since NOTIFY rejects anything past 8000 bytes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		person TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL CHECK (status IN ('doing', 'blocked', 'help', 'done')),
		priority TEXT NOT NULL DEFAULT 'none',
		sort_order DOUBLE PRECISION NOT NULL DEFAULT 0,
		date TEXT NOT NULL,
		continued BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS activities_created_at_idx ON activities (created_at DESC)`,
	`CREATE OR REPLACE FUNCTION workboard_notify_task() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('` + tasksChannel + `', json_build_object('type', lower(TG_OP), 'id', OLD.id)::text);
			RETURN OLD;
		END IF;
		PERFORM pg_notify('` + tasksChannel + `', json_build_object('type', lower(TG_OP), 'id', NEW.id)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS workboard_tasks_notify ON tasks`,
	`CREATE TRIGGER workboard_tasks_notify AFTER INSERT OR UPDATE OR DELETE ON tasks
		FOR EACH ROW EXECUTE FUNCTION workboard_notify_task()`,
	`CREATE OR REPLACE FUNCTION workboard_notify_activity() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + activitiesChannel + `', json_build_object('type', 'insert', 'id', NEW.id)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS workboard_activities_notify ON activities`,
	`CREATE TRIGGER workboard_activities_notify AFTER INSERT ON activities
		FOR EACH ROW EXECUTE FUNCTION workboard_notify_activity()`,
}
