package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"user:change_password",
	},
	"instructor": {
		"exam:create",
		"exam:publish",
		"exam:archive",
		"exam:view",
		"exam:view-keys",
		"attempt:view-all",
		"review:list",
		"review:approve",
		"review:return",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
