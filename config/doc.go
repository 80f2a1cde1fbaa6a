/*
Package config loads the settings of an entitymap deployment.

Settings come from, in increasing precedence: built-in defaults, a YAML file, and environment
variables prefixed ENTITYMAP_ (a .env file in the working directory is loaded first). Nested
keys join with an underscore, so dynamodb.table is read from ENTITYMAP_DYNAMODB_TABLE.
*/
package config
