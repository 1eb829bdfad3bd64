// Package record maps application entities onto table rows.
//
// An entity is any type embedding Record. A Repository for that type
// derives the table name from the type name (Widget is stored in
// "widgets"), reads the table's columns from the adapter once, and offers
// find, save and destroy on top of raw SQL supplied by the caller. There is
// no query builder: conditions and custom queries are SQL fragments with
// positional placeholders.
//
// Records move through three states:
//
//	New --Save--> Persisted --Destroy--> Destroyed
//
// A failed Save or Destroy leaves the entity untouched. Saving or
// destroying a Destroyed entity, or destroying a New one, is a StateError.
//
// Usage:
//
//	type Widget struct{ record.Record }
//
//	func (w *Widget) FromRow(row database.Row) error {
//	    return record.Require(row, "name")
//	}
//
//	widgets := record.NewRepository(db, func() *Widget { return &Widget{} })
//	w := widgets.Build(record.Attributes{"name": database.Text("bolt")})
//	if err := widgets.Save(ctx, w); err != nil {
//	    return err
//	}
//	found, err := widgets.Find(ctx, 1)
package record
