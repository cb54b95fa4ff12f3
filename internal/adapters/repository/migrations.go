package repository

const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    sub_type    TEXT NOT NULL,
    birth_year  INTEGER NOT NULL DEFAULT 0,
    nationality TEXT NOT NULL DEFAULT '',
    team        TEXT NOT NULL DEFAULT '',
    league      TEXT NOT NULL DEFAULT '',
    season      TEXT NOT NULL DEFAULT '',
    height_cm   REAL NOT NULL DEFAULT 0,
    weight_kg   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS factor_records (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id  INTEGER NOT NULL,
    source     TEXT NOT NULL,
    value      REAL NOT NULL DEFAULT 0,
    lookup_key TEXT NOT NULL DEFAULT '',
    sample     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_factor_records_source ON factor_records(source);
CREATE INDEX IF NOT EXISTS idx_factor_records_entity ON factor_records(entity_id);

CREATE TABLE IF NOT EXISTS counters (
    entity_id INTEGER PRIMARY KEY,
    goals     INTEGER NOT NULL DEFAULT 0,
    assists   INTEGER NOT NULL DEFAULT 0,
    views     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rating_records (
    entity_id        INTEGER PRIMARY KEY,
    name             TEXT NOT NULL,
    sub_type         TEXT NOT NULL,
    birth_year       INTEGER NOT NULL,
    factors          TEXT NOT NULL DEFAULT '{}',
    category_sums    TEXT NOT NULL DEFAULT '{}',
    category_ratings TEXT NOT NULL DEFAULT '{}',
    grand_total      REAL NOT NULL,
    overall          INTEGER NOT NULL,
    engine_version   TEXT NOT NULL,
    weights_version  TEXT NOT NULL,
    computed_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rating_records_overall ON rating_records(overall);

CREATE TABLE IF NOT EXISTS runs (
    run_id          TEXT PRIMARY KEY,
    mode            TEXT NOT NULL,
    engine_version  TEXT NOT NULL,
    weights_version TEXT NOT NULL,
    catalog_version TEXT NOT NULL,
    as_of           TEXT NOT NULL,
    entities        INTEGER NOT NULL,
    anomalies       INTEGER NOT NULL,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

CREATE TABLE IF NOT EXISTS weekly_snapshots (
    entity_id     INTEGER NOT NULL,
    snapshot_date TEXT NOT NULL,
    goals         INTEGER NOT NULL DEFAULT 0,
    assists       INTEGER NOT NULL DEFAULT 0,
    views         INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (entity_id, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_weekly_snapshots_date ON weekly_snapshots(snapshot_date);

CREATE TABLE IF NOT EXISTS audit_reports (
    run_id     TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    body       TEXT NOT NULL
);
`
