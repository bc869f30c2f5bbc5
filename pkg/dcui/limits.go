package dcui

// MaxMessageLen is Discord's content limit in characters.
const MaxMessageLen = 2000

// DefaultChunk leaves room under MaxMessageLen for a short header.
const DefaultChunk = 1900

// MaxFieldValueLen is Discord's limit for one embed field value.
const MaxFieldValueLen = 1024
