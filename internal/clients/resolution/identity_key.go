package resolution

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
)

// IdentityKey is the normalized tuple a lead is matched on. It is derived
// per call and never cached.
type IdentityKey struct {
	Email       string
	Phone       string
	Siret       string
	CompanyName string
}

// Key derives the identity key of a lead. Placeholder channels are blanked
// so they can never act as a match key.
func (n Normalizer) Key(lead domain.Lead) IdentityKey {
	key := IdentityKey{
		Email:       n.Email(lead.Email),
		Phone:       n.Phone(lead.Phone),
		Siret:       n.Siret(lead.Siret),
		CompanyName: n.Text(lead.Company),
	}
	if n.isPlaceholderEmail(key.Email) {
		key.Email = ""
	}
	if n.isPlaceholderPhone(key.Phone) {
		key.Phone = ""
	}
	if IsTemporarySiret(key.Siret) {
		key.Siret = ""
	}
	return key
}

// NewIdentityKey derives the key of a lead with the default normalizer.
func NewIdentityKey(lead domain.Lead) IdentityKey {
	return defaultNormalizer.Key(lead)
}

// Empty reports whether no field can identify the lead.
func (k IdentityKey) Empty() bool {
	return k.Email == "" && k.Phone == "" && k.Siret == "" && k.CompanyName == ""
}

// Fingerprint returns a short stable hash of the key, safe to log and to use
// in lock names. An empty key has an empty fingerprint.
func (k IdentityKey) Fingerprint() string {
	if k.Empty() {
		return ""
	}
	sum := sha256.Sum256([]byte("e:" + k.Email + "|p:" + k.Phone + "|s:" + k.Siret + "|c:" + k.CompanyName))
	return hex.EncodeToString(sum[:8])
}

// Primary returns the highest-priority non-empty component of the key.
func (k IdentityKey) Primary() domain.UniqueKey {
	switch {
	case k.Email != "":
		return domain.UniqueKey{Kind: domain.KeyEmail, Value: k.Email}
	case k.Phone != "":
		return domain.UniqueKey{Kind: domain.KeyPhone, Value: k.Phone}
	case k.Siret != "":
		return domain.UniqueKey{Kind: domain.KeySiret, Value: k.Siret}
	case k.CompanyName != "":
		return domain.UniqueKey{Kind: domain.KeyCompanyName, Value: k.CompanyName}
	default:
		return domain.UniqueKey{Kind: domain.KeyNone}
	}
}

// UniqueKeys lists the components guarded by storage for this hint. Company
// names are never guarded (homonyms). BuildClientDraft adds the resolved SIRET
// of any company it creates.
func (k IdentityKey) UniqueKeys(hint domain.ClientType) []domain.UniqueKey {
	var keys []domain.UniqueKey
	if k.Email != "" {
		keys = append(keys, domain.UniqueKey{Kind: domain.KeyEmail, Value: k.Email})
	}
	if k.Phone != "" {
		keys = append(keys, domain.UniqueKey{Kind: domain.KeyPhone, Value: k.Phone})
	}
	if hint == domain.ClientTypeCompany && k.Siret != "" {
		keys = append(keys, domain.UniqueKey{Kind: domain.KeySiret, Value: k.Siret})
	}
	return keys
}

func (n Normalizer) isPlaceholderEmail(normalized string) bool {
	return normalized != "" && normalized == n.Email(domain.PlaceholderEmail)
}

func (n Normalizer) isPlaceholderPhone(normalized string) bool {
	return normalized != "" && normalized == n.Phone(domain.PlaceholderMobile)
}
