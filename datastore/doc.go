/*
Package datastore defines the row-level storage contract behind the persistence engine.

Every entity type is stored table-per-type: each inheritance level owns a table holding the
atomized primary key and the atomized members declared at that level. TableFor derives that
schema from metadata:

	t := datastore.TableFor(customerType)
	// t.Columns: Id, Name, Country_Code, ...
	// t.ForeignKeys: fk_Customer_Country -> Country(Code)

A Backend provides DDL (CreateTable, CreateIndexes, CreateForeignKeys, DropTable, TableExists),
row access (Get, Scan, Insert, Update, Delete, NextSequence) and transactions through Begin:

	tx, err := backend.Begin(ctx)
	if err != nil {
	    return err
	}
	if err := tx.Insert(ctx, t, row); err != nil {
	    _ = tx.Rollback(ctx)
	    return err
	}
	return tx.Commit(ctx)

Implementations:
  - memory: in-memory relational tables with constraint, index and foreign key checks
  - ddb: DynamoDB single-table design
*/
package datastore
