package schema

import "strings"

// Lookup queries shared by several kinds. All queries are written with $N
// placeholders and rewritten per dialect by the store.
const (
	usernameByID     = "SELECT username FROM users WHERE id = $1"
	categoryPathByID = "SELECT path FROM categories WHERE id = $1"

	// Built-in access levels (id <= 6) are referenced by number, custom
	// ones by title, so the portable form survives instances where the
	// custom levels have different ids.
	accessQueryTmpl = "SELECT CASE WHEN v.id <= 6 THEN CAST(v.id AS TEXT) ELSE v.title END " +
		"FROM viewlevels v JOIN %TABLE% a ON v.id = a.access WHERE a.id = $1"

	fieldCategoriesQuery = "SELECT c.path FROM categories c " +
		"JOIN fields_categories fc ON c.id = fc.category_id WHERE fc.field_id = $1"

	// Group membership is exported as the full ancestor-title path so it
	// can be re-created on an instance with different group ids.
	userGroupPathsQuery = "WITH RECURSIVE grouppath(id, path) AS (" +
		"SELECT id, title FROM usergroups WHERE parent_id = 0 " +
		"UNION ALL " +
		"SELECT g.id, gp.path || '/' || g.title FROM usergroups g " +
		"JOIN grouppath gp ON g.parent_id = gp.id) " +
		"SELECT path FROM grouppath p " +
		"JOIN user_usergroup_map m ON p.id = m.group_id WHERE m.user_id = $1"
)

func accessAlias(table string) Alias {
	return Alias{
		Name:  "access",
		Query: strings.ReplaceAll(accessQueryTmpl, "%TABLE%", table),
		Bind:  BindKey,
	}
}

func userAlias(col string) Alias {
	return Alias{Name: col, Query: usernameByID, Bind: BindValue}
}

// Category is the hierarchical grouping kind. Its natural key is the full
// path plus the owning extension.
var Category = &Entity{
	Kind:       "category",
	Table:      "categories",
	Key:        "id",
	NaturalKey: []string{"path", "extension"},
	Columns: []Column{
		{"id", "bigint"}, {"asset_id", "bigint"}, {"parent_id", "bigint"},
		{"lft", "int"}, {"rgt", "int"}, {"level", "int"},
		{"path", "string"}, {"extension", "string"}, {"title", "string"},
		{"alias", "string"}, {"note", "string"}, {"description", "text"},
		{"published", "int"}, {"checked_out", "bigint"},
		{"checked_out_time", "timestamp"}, {"access", "bigint"},
		{"params", "json"}, {"metadesc", "string"}, {"metakey", "string"},
		{"created_user_id", "bigint"}, {"created_time", "timestamp"},
		{"modified_user_id", "bigint"}, {"modified_time", "timestamp"},
		{"hits", "int"}, {"language", "string"}, {"version", "int"},
	},
	Excluded:    withBaseExcluded(),
	JSONEncoded: []string{"params"},
	DateColumns: []string{"created_time", "modified_time"},
	Aliases: []Alias{
		userAlias("created_user_id"),
		userAlias("modified_user_id"),
		accessAlias("categories"),
	},
}

// Content is an article row.
var Content = &Entity{
	Kind:       "content",
	Table:      "content",
	Key:        "id",
	NaturalKey: []string{"alias", "catid"},
	Columns: []Column{
		{"id", "bigint"}, {"asset_id", "bigint"}, {"title", "string"},
		{"alias", "string"}, {"introtext", "text"}, {"fulltext", "text"},
		{"state", "int"}, {"catid", "bigint"}, {"created", "timestamp"},
		{"created_by", "bigint"}, {"created_by_alias", "string"},
		{"modified", "timestamp"}, {"modified_by", "bigint"},
		{"checked_out", "bigint"}, {"checked_out_time", "timestamp"},
		{"publish_up", "timestamp"}, {"publish_down", "timestamp"},
		{"images", "json"}, {"urls", "json"}, {"attribs", "json"},
		{"version", "int"}, {"ordering", "int"}, {"metakey", "string"},
		{"metadesc", "string"}, {"metadata", "json"}, {"access", "bigint"},
		{"hits", "int"}, {"featured", "boolean"}, {"language", "string"},
		{"note", "string"},
	},
	Excluded:    withBaseExcluded(),
	JSONEncoded: []string{"images", "urls", "attribs", "metadata"},
	DateColumns: []string{"created", "modified", "publish_up", "publish_down"},
	Aliases: []Alias{
		userAlias("created_by"),
		userAlias("modified_by"),
		{Name: "catid", Query: categoryPathByID, Bind: BindValue},
		accessAlias("content"),
	},
}

// Field is a custom field definition; its natural key is (context, name).
var Field = &Entity{
	Kind:       "field",
	Table:      "fields",
	Key:        "id",
	NaturalKey: []string{"context", "name"},
	Columns: []Column{
		{"id", "bigint"}, {"asset_id", "bigint"}, {"context", "string"},
		{"group_id", "bigint"}, {"title", "string"}, {"name", "string"},
		{"label", "string"}, {"default_value", "text"}, {"type", "string"},
		{"note", "string"}, {"description", "text"}, {"state", "int"},
		{"required", "boolean"}, {"checked_out", "bigint"},
		{"checked_out_time", "timestamp"}, {"ordering", "int"},
		{"params", "json"}, {"fieldparams", "json"}, {"language", "string"},
		{"created_time", "timestamp"}, {"created_user_id", "bigint"},
		{"modified_time", "timestamp"}, {"modified_user_id", "bigint"},
		{"access", "bigint"},
	},
	Excluded:    withBaseExcluded("group_id"),
	JSONEncoded: []string{"params", "fieldparams"},
	DateColumns: []string{"created_time", "modified_time"},
	Aliases: []Alias{
		userAlias("created_user_id"),
		userAlias("modified_user_id"),
		accessAlias("fields"),
		{Name: "category", Query: fieldCategoriesQuery, Bind: BindKey},
	},
}

// Tag is a flat-path tag; its natural key is the path.
var Tag = &Entity{
	Kind:       "tag",
	Table:      "tags",
	Key:        "id",
	NaturalKey: []string{"path"},
	Columns: []Column{
		{"id", "bigint"}, {"parent_id", "bigint"}, {"lft", "int"},
		{"rgt", "int"}, {"level", "int"}, {"path", "string"},
		{"title", "string"}, {"alias", "string"}, {"note", "string"},
		{"description", "text"}, {"published", "int"},
		{"checked_out", "bigint"}, {"checked_out_time", "timestamp"},
		{"access", "bigint"}, {"params", "json"}, {"metadesc", "string"},
		{"metakey", "string"}, {"created_user_id", "bigint"},
		{"created_time", "timestamp"}, {"modified_user_id", "bigint"},
		{"modified_time", "timestamp"}, {"images", "json"},
		{"urls", "json"}, {"hits", "int"}, {"language", "string"},
		{"version", "int"},
	},
	Excluded:    withBaseExcluded(),
	JSONEncoded: []string{"params", "images", "urls"},
	DateColumns: []string{"created_time", "modified_time"},
	Aliases: []Alias{
		userAlias("created_user_id"),
		userAlias("modified_user_id"),
		accessAlias("tags"),
	},
}

// User is an account row; usernames are the portable identity.
var User = &Entity{
	Kind:       "user",
	Table:      "users",
	Key:        "id",
	NaturalKey: []string{"username"},
	Columns: []Column{
		{"id", "bigint"}, {"name", "string"}, {"username", "string"},
		{"email", "string"}, {"password", "string"}, {"block", "boolean"},
		{"sendEmail", "boolean"}, {"registerDate", "timestamp"},
		{"lastvisitDate", "timestamp"}, {"activation", "string"},
		{"params", "json"}, {"lastResetTime", "timestamp"},
		{"resetCount", "int"}, {"requireReset", "boolean"},
	},
	Excluded:    withBaseExcluded("otpKey", "otep"),
	JSONEncoded: []string{"params"},
	DateColumns: []string{"registerDate", "lastvisitDate", "lastResetTime"},
	Aliases: []Alias{
		{Name: "group", Query: userGroupPathsQuery, Bind: BindKey},
	},
}

// Usergroup nodes are never exported standalone; they are created on
// demand while resolving user group paths.
var Usergroup = &Entity{
	Kind:       "usergroup",
	Table:      "usergroups",
	Key:        "id",
	NaturalKey: []string{"title", "parent_id"},
	Columns: []Column{
		{"id", "bigint"}, {"parent_id", "bigint"}, {"lft", "int"},
		{"rgt", "int"}, {"title", "string"},
	},
	Excluded: withBaseExcluded(),
}

// Viewlevel is an access level; ids up to 6 are fixed built-ins.
var Viewlevel = &Entity{
	Kind:       "viewlevel",
	Table:      "viewlevels",
	Key:        "id",
	NaturalKey: []string{"title"},
	Columns: []Column{
		{"id", "bigint"}, {"title", "string"}, {"ordering", "int"},
		{"rules", "json"},
	},
	Excluded:    withBaseExcluded(),
	JSONEncoded: []string{"rules"},
}

// Usernote is a note attached to a user account.
var Usernote = &Entity{
	Kind:       "usernote",
	Table:      "usernotes",
	Key:        "id",
	NaturalKey: []string{"user_id", "subject"},
	Columns: []Column{
		{"id", "bigint"}, {"user_id", "bigint"}, {"catid", "bigint"},
		{"subject", "string"}, {"body", "text"}, {"state", "int"},
		{"checked_out", "bigint"}, {"checked_out_time", "timestamp"},
		{"created_user_id", "bigint"}, {"created_time", "timestamp"},
		{"modified_user_id", "bigint"}, {"modified_time", "timestamp"},
		{"review_time", "timestamp"}, {"publish_up", "timestamp"},
		{"publish_down", "timestamp"},
	},
	Excluded:    withBaseExcluded(),
	DateColumns: []string{"created_time", "modified_time", "review_time", "publish_up", "publish_down"},
	Aliases: []Alias{
		userAlias("created_user_id"),
		userAlias("modified_user_id"),
		{Name: "catid", Query: categoryPathByID, Bind: BindValue},
	},
}

// kinds indexes every transcodable kind by element tag.
var kinds = map[string]*Entity{
	Category.Kind:  Category,
	Content.Kind:   Content,
	Field.Kind:     Field,
	Tag.Kind:       Tag,
	User.Kind:      User,
	Usergroup.Kind: Usergroup,
	Viewlevel.Kind: Viewlevel,
	Usernote.Kind:  Usernote,
}

// ImportOrder lists the kinds in store-dependency order: records later in
// the list may reference ids created by earlier ones.
var ImportOrder = []*Entity{
	User, Viewlevel, Category, Tag, Field, Content, Usernote,
}

// Get returns the entity descriptor for a kind tag, or nil.
func Get(kind string) *Entity {
	return kinds[kind]
}

// All returns every registered kind.
func All() []*Entity {
	out := make([]*Entity, 0, len(kinds))
	for _, e := range ImportOrder {
		out = append(out, e)
	}
	out = append(out, Usergroup)
	return out
}
