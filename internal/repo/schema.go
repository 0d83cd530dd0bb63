package repo

// schemaDDL creates every table owned directly by internal/repo. The
// Blob and Delta tables are bootstrapped separately by internal/blob's
// SQLiteStore against the same *sql.DB.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS plink (
	pid    INTEGER NOT NULL,
	cid    INTEGER NOT NULL,
	isprim INTEGER NOT NULL,
	mtime  REAL NOT NULL,
	baseid INTEGER,
	PRIMARY KEY (pid, cid)
);
CREATE INDEX IF NOT EXISTS idx_plink_cid ON plink(cid);

CREATE TABLE IF NOT EXISTS mlink (
	mid   INTEGER NOT NULL,
	fid   INTEGER NOT NULL,
	pid   INTEGER NOT NULL,
	fnid  INTEGER NOT NULL,
	pfnid INTEGER NOT NULL,
	mperm TEXT
);
CREATE INDEX IF NOT EXISTS idx_mlink_mid ON mlink(mid);
CREATE INDEX IF NOT EXISTS idx_mlink_fnid ON mlink(fnid);

CREATE TABLE IF NOT EXISTS filename (
	fnid INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS tag (
	tagid   INTEGER PRIMARY KEY AUTOINCREMENT,
	tagname TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS tagxref (
	tagid   INTEGER NOT NULL,
	rid     INTEGER NOT NULL,
	tagtype INTEGER NOT NULL,
	srcid   INTEGER,
	value   TEXT,
	mtime   REAL NOT NULL,
	PRIMARY KEY (tagid, rid)
);

CREATE TABLE IF NOT EXISTS event (
	objid    INTEGER PRIMARY KEY,
	type     TEXT NOT NULL,
	mtime    REAL NOT NULL,
	user     TEXT NOT NULL,
	comment  TEXT,
	euser    TEXT,
	ecomment TEXT,
	tagid    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_event_mtime ON event(mtime);

CREATE TABLE IF NOT EXISTS leaf (
	rid INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS private (
	rid INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS rcvfrom (
	rcvid  INTEGER PRIMARY KEY AUTOINCREMENT,
	uid    TEXT,
	mtime  REAL NOT NULL,
	nonce  TEXT,
	ipaddr TEXT
);

CREATE TABLE IF NOT EXISTS modreq (
	objid     INTEGER PRIMARY KEY,
	attachrid INTEGER,
	tktid     TEXT
);

CREATE TABLE IF NOT EXISTS shun (
	uuid TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS config (
	name  TEXT PRIMARY KEY,
	value TEXT
);
`
