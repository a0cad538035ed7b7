package domain

// KeyKind names the identifier a match or a uniqueness guard is based on.
type KeyKind string

const (
	KeyEmail       KeyKind = "email"
	KeyPhone       KeyKind = "phone"
	KeySiret       KeyKind = "siret"
	KeyCompanyName KeyKind = "company_name"
	KeyNone        KeyKind = "none"
)

// UniqueKey is a normalized identifier that at most one client of an
// organization may own.
type UniqueKey struct {
	Kind  KeyKind
	Value string
}

// ContactDraft carries the fields of a contact to be created.
type ContactDraft struct {
	FirstName        string
	LastName         string
	Email            string
	Mobile           string
	Roles            []ContactRole
	IsBillingDefault bool
	// UniqueKeys are registered for the owning client when the contact is stored.
	UniqueKeys []UniqueKey
}

// ClientDraft carries everything needed to persist a new client and its
// optional primary contact in one write.
type ClientDraft struct {
	Type           ClientType
	Name           string
	CompanyName    string
	FirstName      string
	LastName       string
	Siret          string
	Email          string
	Phone          string
	Address        string
	City           string
	Status         string
	Tags           []string
	PrimaryContact *ContactDraft
	// UniqueKeys must not be owned by another client of the organization,
	// otherwise the store rejects the draft with a conflict.
	UniqueKeys []UniqueKey
}

// Client projects the draft onto an unsaved Client value.
func (d ClientDraft) Client() Client {
	return Client{
		Type:        d.Type,
		Name:        d.Name,
		CompanyName: d.CompanyName,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Siret:       d.Siret,
		Email:       d.Email,
		Phone:       d.Phone,
		Address:     d.Address,
		City:        d.City,
		Status:      d.Status,
		Tags:        d.Tags,
	}
}
