/*
Package config defines the Options recognized by Open: a YAML file
read from inside the database directory, merged under programmatic
overrides passed to Open itself. The file is optional — a database
with no nervusdb.yaml uses every default below.
*/
package config
