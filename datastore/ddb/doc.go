/*
Package ddb provides a DynamoDB implementation of datastore.Backend.

The Store supports:
  - Single-table design: every entity table is a set of items sharing SK=<table>
  - Keys built from the escaped primary key columns, PK=<table>#<col>=<value>&...
  - An EntityType attribute used to filter scans by table
  - Paged scans with retry and progress reporting
  - Conditional puts, updates and deletes mapped onto the engine's errors
  - Sequences via atomic ADD on a counter item
  - Transactions buffered into a single TransactWriteItems call

Key layout:

	PK                             SK         EntityType
	Customer#Id=42                 Customer   Customer
	OrderLine#Order_Id=...&Line=1  OrderLine  OrderLine
	__table#Customer               __table#   __table#
	__seq#Customer                 Id         -

Scans accept functional options:

	store := ddb.New(client, "entities",
	    ddb.WithPageSize(25),
	    ddb.WithMaxRetries(3),
	    ddb.WithProgressHandler(func(p ddb.ScanProgress) {
	        log.Printf("Processed %d items", p.ItemsProcessed)
	    }),
	)

Secondary indexes and foreign keys are not materialised; DynamoDB cannot hold Go type columns,
which VerifySetup reports as UnsupportedTypeForBackend.
*/
package ddb
