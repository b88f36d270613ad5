package db

import _ "embed"

//go:embed schema.sql
var Schema string

// DateLayout is how history dates are stored, dates sort as text.
const DateLayout = "2006-01-02"
