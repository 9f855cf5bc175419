package sqlite

const schema = `
-- Cities table ("banana" = lowercase name + 2-letter state, e.g. paloaltoCA)
CREATE TABLE IF NOT EXISTS cities (
    banana TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    state TEXT NOT NULL CHECK(length(state) = 2),
    vendor TEXT NOT NULL,
    slug TEXT NOT NULL,
    county TEXT,
    status TEXT DEFAULT 'active',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cities_vendor ON cities(vendor);

CREATE TABLE IF NOT EXISTS zipcodes (
    banana TEXT NOT NULL,
    zipcode TEXT NOT NULL,
    is_primary INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (banana, zipcode),
    FOREIGN KEY (banana) REFERENCES cities(banana) ON DELETE CASCADE
);

-- Meetings table. id = {banana}_{md5(banana:vendor_id:date:title)[:8]}
CREATE TABLE IF NOT EXISTS meetings (
    id TEXT PRIMARY KEY,
    banana TEXT NOT NULL,
    vendor_id TEXT,
    title TEXT NOT NULL,
    date DATETIME NOT NULL,
    agenda_url TEXT,
    packet_url TEXT,
    summary TEXT,
    topics TEXT,             -- JSON array
    participation TEXT,      -- opaque JSON blob from the vendor
    status TEXT,             -- cancelled | postponed | revised | rescheduled
    processing_status TEXT NOT NULL DEFAULT 'pending'
        CHECK(processing_status IN ('pending','processing','completed','failed')),
    processing_method TEXT,
    processing_time REAL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (banana) REFERENCES cities(banana) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_meetings_banana ON meetings(banana);
CREATE INDEX IF NOT EXISTS idx_meetings_date ON meetings(date);
CREATE INDEX IF NOT EXISTS idx_meetings_processing ON meetings(processing_status);

-- Agenda items. id = {meeting_id}_{vendor item id | seqN}
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    meeting_id TEXT NOT NULL,
    title TEXT NOT NULL,
    sequence INTEGER NOT NULL DEFAULT 0 CHECK(sequence >= 0),
    attachments TEXT,        -- JSON array of {url,name,type,pages}
    attachment_hash TEXT,    -- sha256 over ordered attachment URLs
    matter_id TEXT,          -- canonical city_matters key
    matter_file TEXT,        -- denormalized clerk file number
    vendor_matter_id TEXT,
    matter_type TEXT,
    agenda_number TEXT,
    sponsors TEXT,           -- JSON array
    summary TEXT,
    topics TEXT,             -- JSON array
    procedural INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_meeting ON items(meeting_id);
CREATE INDEX IF NOT EXISTS idx_items_matter ON items(matter_id);

-- Canonical legislative matters, deduplicated per city.
-- identity is the fallback-hierarchy string (file: > vendor: > title:);
-- within a city no two matters share it.
CREATE TABLE IF NOT EXISTS city_matters (
    id TEXT PRIMARY KEY,
    banana TEXT NOT NULL,
    identity TEXT NOT NULL CHECK(length(identity) > 0),
    matter_file TEXT,
    vendor_matter_id TEXT,
    matter_type TEXT,
    title TEXT NOT NULL DEFAULT '',
    sponsors TEXT,           -- JSON array
    canonical_summary TEXT,
    canonical_topics TEXT,   -- JSON array
    attachments TEXT,        -- JSON array
    metadata TEXT,           -- JSON blob
    first_seen DATETIME NOT NULL,
    last_seen DATETIME NOT NULL,
    appearance_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active'
        CHECK(status IN ('active','passed','failed','tabled','withdrawn','referred','amended','vetoed','enacted')),
    final_vote_date DATETIME,
    UNIQUE (banana, identity),
    FOREIGN KEY (banana) REFERENCES cities(banana) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_matters_banana ON city_matters(banana);
CREATE INDEX IF NOT EXISTS idx_matters_file ON city_matters(banana, matter_file);

-- One row per occurrence of a matter on a meeting agenda.
CREATE TABLE IF NOT EXISTS matter_appearances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    matter_id TEXT NOT NULL,
    meeting_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    appeared_at DATETIME NOT NULL,
    committee TEXT,
    vote_outcome TEXT
        CHECK(vote_outcome IS NULL OR vote_outcome IN ('passed','failed','tabled','withdrawn','referred','amended','unknown','no_vote')),
    vote_tally TEXT,         -- JSON {yes,no,abstain,absent}
    sequence INTEGER NOT NULL DEFAULT 0,
    UNIQUE (matter_id, meeting_id, item_id),
    FOREIGN KEY (matter_id) REFERENCES city_matters(id) ON DELETE CASCADE,
    FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_appearances_matter ON matter_appearances(matter_id);
CREATE INDEX IF NOT EXISTS idx_appearances_meeting ON matter_appearances(meeting_id);

-- Priority job queue. source_url is the dedup key: at most one live
-- (pending/processing) row per URL, enforced by the unique index plus the
-- enqueue upsert.
CREATE TABLE IF NOT EXISTS queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_url TEXT NOT NULL UNIQUE,
    meeting_id TEXT,
    banana TEXT,
    job_type TEXT NOT NULL DEFAULT 'meeting' CHECK(job_type IN ('meeting','matter')),
    payload TEXT,            -- JSON blob
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending','processing','completed','failed','dead_letter')),
    priority INTEGER NOT NULL DEFAULT 0,
    retry_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    started_at DATETIME,
    completed_at DATETIME,
    failed_at DATETIME,
    error_message TEXT,
    processing_metadata TEXT -- JSON blob
);

CREATE INDEX IF NOT EXISTS idx_queue_dequeue ON queue(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_queue_meeting ON queue(meeting_id);

-- Extracted-document cache shared across processing jobs. hit_count is
-- preserved on upsert.
CREATE TABLE IF NOT EXISTS document_cache (
    url_hash TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    text TEXT NOT NULL,
    pages INTEGER NOT NULL DEFAULT 0,
    hit_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
