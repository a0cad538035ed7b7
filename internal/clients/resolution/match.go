package resolution

import (
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
)

// Match is the outcome of a lookup: the client found and the key it was found by.
type Match struct {
	Client domain.Client
	By     domain.KeyKind
}

// Found reports whether a client was matched.
func (m Match) Found() bool {
	return m.By != "" && m.By != domain.KeyNone
}

// MatchEngine finds the client a lead belongs to. It performs no I/O.
type MatchEngine struct {
	norm Normalizer
}

// NewMatchEngine returns a MatchEngine using n for both sides of every comparison.
func NewMatchEngine(n Normalizer) MatchEngine {
	return MatchEngine{norm: n}
}

// FindBestMatch returns the highest-priority client matching lead.
func (e MatchEngine) FindBestMatch(lead domain.Lead, clients []domain.Client) (domain.Client, bool) {
	m := e.Match(lead, clients)
	return m.Client, m.Found()
}

// Match runs the four searches in priority order: email, phone, SIRET,
// company name. SIRET and company name are searched only for leads hinted
// as companies. Within one search the first client in slice order wins.
func (e MatchEngine) Match(lead domain.Lead, clients []domain.Client) Match {
	return e.matchKey(e.norm.Key(lead), lead.ClientType, clients)
}

func (e MatchEngine) matchKey(key IdentityKey, hint domain.ClientType, clients []domain.Client) Match {
	if key.Email != "" {
		if c, ok := e.byEmail(key.Email, clients); ok {
			return Match{Client: c, By: domain.KeyEmail}
		}
	}
	if key.Phone != "" {
		if c, ok := e.byPhone(key.Phone, clients); ok {
			return Match{Client: c, By: domain.KeyPhone}
		}
	}
	if hint != domain.ClientTypeCompany {
		return Match{By: domain.KeyNone}
	}
	if key.Siret != "" {
		if c, ok := e.bySiret(key.Siret, clients); ok {
			return Match{Client: c, By: domain.KeySiret}
		}
	}
	if key.CompanyName != "" {
		if c, ok := e.byCompanyName(key.CompanyName, clients); ok {
			return Match{Client: c, By: domain.KeyCompanyName}
		}
	}
	return Match{By: domain.KeyNone}
}

// matchUniqueKeys searches exactly the given storage-guarded keys, in order,
// regardless of the lead's type hint.
func (e MatchEngine) matchUniqueKeys(keys []domain.UniqueKey, clients []domain.Client) Match {
	for _, k := range keys {
		var (
			c  domain.Client
			ok bool
		)
		switch k.Kind {
		case domain.KeyEmail:
			c, ok = e.byEmail(k.Value, clients)
		case domain.KeyPhone:
			c, ok = e.byPhone(k.Value, clients)
		case domain.KeySiret:
			c, ok = e.bySiret(k.Value, clients)
		}
		if ok {
			return Match{Client: c, By: k.Kind}
		}
	}
	return Match{By: domain.KeyNone}
}

// byEmail looks at every contact, active or not, and at the client's own email.
func (e MatchEngine) byEmail(email string, clients []domain.Client) (domain.Client, bool) {
	for _, c := range clients {
		if e.norm.Email(c.Email) == email {
			return c, true
		}
		for _, contact := range c.Contacts {
			if e.norm.Email(contact.Email) == email {
				return c, true
			}
		}
	}
	return domain.Client{}, false
}

func (e MatchEngine) byPhone(phone string, clients []domain.Client) (domain.Client, bool) {
	for _, c := range clients {
		if e.norm.Phone(c.Phone) == phone {
			return c, true
		}
		for _, contact := range c.Contacts {
			if e.norm.Phone(contact.Mobile) == phone {
				return c, true
			}
		}
	}
	return domain.Client{}, false
}

func (e MatchEngine) bySiret(siret string, clients []domain.Client) (domain.Client, bool) {
	for _, c := range clients {
		if c.Type == domain.ClientTypeCompany && e.norm.Siret(c.Siret) == siret {
			return c, true
		}
	}
	return domain.Client{}, false
}

func (e MatchEngine) byCompanyName(name string, clients []domain.Client) (domain.Client, bool) {
	for _, c := range clients {
		if c.Type != domain.ClientTypeCompany {
			continue
		}
		candidate := c.CompanyName
		if e.norm.Text(candidate) == "" {
			candidate = c.Name
		}
		if e.norm.Text(candidate) == name {
			return c, true
		}
	}
	return domain.Client{}, false
}
