package message

import "fmt"

// Well-known MTIs.
const (
	MTIAuthRequest      = "0200"
	MTIAuthResponse     = "0210"
	MTIReversalRequest  = "0400"
	MTIReversalResponse = "0410"
	MTIEchoRequest      = "0800"
	MTIEchoResponse     = "0810"
)

// Well-known response codes.
const (
	CodeApproved           = "00"
	CodeReferToIssuer      = "01"
	CodeInvalidMerchant    = "03"
	CodeDoNotHonor         = "05"
	CodeInvalidTransaction = "12"
	CodeInvalidAmount      = "13"
	CodeInvalidCard        = "14"
	CodeFormatError        = "30"
	CodeSystemError        = "96"
)

// Catalog is an immutable code-to-meaning lookup built once at startup.
type Catalog struct {
	entries map[string]string
}

// Entry is one code/meaning pair in declaration order.
type Entry struct {
	Code    string
	Meaning string
}

// NewCatalog builds a catalog from ordered entries. Duplicate codes are
// rejected outright; a catalog where the later entry silently wins hides
// data bugs in the source tables.
func NewCatalog(entries []Entry) (*Catalog, error) {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		if prev, dup := m[e.Code]; dup {
			return nil, fmt.Errorf("duplicate response code %q (%q vs %q)", e.Code, prev, e.Meaning)
		}
		m[e.Code] = e.Meaning
	}
	return &Catalog{entries: m}, nil
}

// Describe returns the meaning for a code, or the code itself when unknown.
func (c *Catalog) Describe(code string) string {
	if meaning, ok := c.entries[code]; ok {
		return meaning
	}
	return code
}

// Known reports whether the catalog has an entry for code.
func (c *Catalog) Known(code string) bool {
	_, ok := c.entries[code]
	return ok
}

// IsApproval reports whether a response code means the transaction was
// approved. A pure function over the code value; no catalog needed.
func IsApproval(code string) bool {
	return code == CodeApproved
}

// DefaultCatalog returns the built-in response-code catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Entry{
		{CodeApproved, "approved"},
		{CodeReferToIssuer, "refer to card issuer"},
		{CodeInvalidMerchant, "invalid merchant"},
		{CodeDoNotHonor, "do not honor"},
		{CodeInvalidTransaction, "invalid transaction"},
		{CodeInvalidAmount, "invalid amount"},
		{CodeInvalidCard, "invalid card number"},
		{CodeFormatError, "format error"},
		{CodeSystemError, "system malfunction"},
	})
	if err != nil {
		// The built-in table is duplicate-free by construction.
		panic(err)
	}
	return c
}
