package db

// Timestamps are unix milliseconds so the same queries run on both drivers.

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS question_sets (
  id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  shared_text TEXT NOT NULL DEFAULT '',
  shared_image_url TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  created_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_question_sets_scope ON question_sets (category, subcategory, difficulty);
CREATE INDEX IF NOT EXISTS idx_question_sets_created ON question_sets (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS taxonomy_topics (
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL,
  topic TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (subcategory, topic)
);

CREATE TABLE IF NOT EXISTS practice_results (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  owner TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '',
  total_questions INTEGER NOT NULL,
  answered_count INTEGER NOT NULL,
  correct_count INTEGER NOT NULL,
  score INTEGER NOT NULL,
  tier TEXT NOT NULL,
  finish_reason TEXT NOT NULL,
  finished_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_practice_results_owner ON practice_results (owner, finished_at DESC)
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS question_sets (
  id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL,
  topic TEXT NOT NULL DEFAULT '',
  difficulty TEXT NOT NULL,
  shared_text TEXT NOT NULL DEFAULT '',
  shared_image_url TEXT NOT NULL DEFAULT '',
  questions_json TEXT NOT NULL,
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_question_sets_scope ON question_sets (category, subcategory, difficulty);
CREATE INDEX IF NOT EXISTS idx_question_sets_created ON question_sets (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS taxonomy_topics (
  category TEXT NOT NULL,
  subcategory TEXT NOT NULL,
  topic TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (subcategory, topic)
);

CREATE TABLE IF NOT EXISTS practice_results (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  owner TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '',
  total_questions INTEGER NOT NULL,
  answered_count INTEGER NOT NULL,
  correct_count INTEGER NOT NULL,
  score INTEGER NOT NULL,
  tier TEXT NOT NULL,
  finish_reason TEXT NOT NULL,
  finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_practice_results_owner ON practice_results (owner, finished_at DESC)
`
