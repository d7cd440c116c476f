package notion

// Role is a logical field of a report log entry. The target database's
// actual property names drift over time; roles are resolved against the
// live schema instead of hardcoding names.
type Role string

const (
	RoleTitle      Role = "title"
	RoleCustomer   Role = "customer"
	RoleProduct    Role = "product"
	RoleKind       Role = "kind"
	RoleDetail     Role = "detail"
	RoleReporter   Role = "reporter"
	RoleAllergen   Role = "allergen"
	RoleDate       Role = "date"
	RoleSourceLink Role = "source_link"
)

// Property describes one database property as reported by the API.
type Property struct {
	Type string `json:"type"`
}

// roleCandidates lists known property names per role, current first.
var roleCandidates = map[Role][]string{
	RoleCustomer:   {"顧客名", "法人名", "customer"},
	RoleProduct:    {"商品名", "食べ物名", "product"},
	RoleKind:       {"ミス種別", "種別", "type"},
	RoleDetail:     {"詳細", "内容", "detail"},
	RoleReporter:   {"確定者", "報告者", "reporter"},
	RoleAllergen:   {"アレルゲン", "allergen"},
	RoleDate:       {"起票日", "日付", "date"},
	RoleSourceLink: {"Slack URL", "SlackURL", "リンク", "url"},
}

// typeFallback roles also match the single property of the given type when
// no candidate name is present.
var typeFallback = map[Role]string{
	RoleTitle:      "title",
	RoleDate:       "date",
	RoleSourceLink: "url",
}

// Schema resolves roles to the property names of one concrete database.
// Built once per target and cached by the client.
type Schema struct {
	properties map[string]Property
	byRole     map[Role]string
}

// BuildSchema maps logical roles onto the database's actual properties.
func BuildSchema(properties map[string]Property) *Schema {
	s := &Schema{properties: properties, byRole: map[Role]string{}}

	for role, candidates := range roleCandidates {
		for _, name := range candidates {
			if _, ok := properties[name]; ok {
				s.byRole[role] = name
				break
			}
		}
	}
	for role, propType := range typeFallback {
		if _, ok := s.byRole[role]; ok {
			continue
		}
		for name, prop := range properties {
			if prop.Type == propType {
				s.byRole[role] = name
				break
			}
		}
	}
	return s
}

// Resolve returns the property name serving a role, if the database has
// one. Absent roles are simply skipped by writers.
func (s *Schema) Resolve(role Role) (string, bool) {
	name, ok := s.byRole[role]
	return name, ok
}

// PropertyType returns the type of a resolved property name.
func (s *Schema) PropertyType(name string) string {
	return s.properties[name].Type
}
