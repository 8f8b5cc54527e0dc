package state

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (collection, id)
);

CREATE TABLE IF NOT EXISTS user_events (
  event_id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  event_name TEXT NOT NULL,
  event_time TEXT NOT NULL,
  path_name TEXT,
  payload TEXT,
  event_location TEXT
);

CREATE INDEX IF NOT EXISTS idx_user_events_session ON user_events(session_id, event_time);
CREATE INDEX IF NOT EXISTS idx_user_events_user ON user_events(user_id, event_time);

CREATE TABLE IF NOT EXISTS user_orders (
  order_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  products_payload TEXT NOT NULL,
  paid_amount REAL NOT NULL,
  order_date TEXT NOT NULL,
  session_location TEXT
);

CREATE INDEX IF NOT EXISTS idx_user_orders_user ON user_orders(user_id, order_date);
`
