/*
Package schema defines the core types for declarative module descriptors.

A module is a named bundle of configuration, routes, pages, actions, components,
filters, validators and localized strings. Descriptors are plain data: they can be
declared in Go or loaded from YAML, JSON or TOML files.

# Module Descriptor

A minimal descriptor in YAML:

	name: admin

	config:
	  title: Administration
	  dependencies:
	    - core
	    - { name: users, original: accounts, config: { pageSize: 50 } }
	  backendDependencies: [accounts-api]
	  views:
	    - { module: users, view: "/users/list$", component: CompactUserList }

	routers:
	  - path: admin
	    name: admin
	    component: AdminLayout
	    children:
	      - path: ""
	        redirect: dashboard
	      - path: dashboard
	        component: Dashboard
	      - "users>list"
	      - { ref: "settings>general", path: preferences }

# Dependency References

An entry of config.dependencies is either a bare module name or a map with
name, an optional original (the descriptor key to load, for aliases) and an
optional config overlay merged into the dependency once it is resolved.

# Route References

A route entry that is a plain string, or a map carrying ref, points into the
route tree of another module: "users>list" means the routers of module users,
then the child named or pathed "list". Map-form references may override fields
of the target node.

# View Overrides

Entries under config.views replace the component and/or props of every leaf
route of the named module whose accumulated path matches the view pattern.

# Parsing

	desc, err := schema.ParseFile("src/modules/admin/module.yaml")
	bundle, err := schema.ParseBundleFile("src/modules/admin/i18n/en/index.yaml", "en")

Descriptors are validated on parse. Invalid descriptors return an error listing
every problem found.
*/
package schema
