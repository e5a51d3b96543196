// Package reembed regenerates vector rows from the records in the table
// store.
//
// Ingestion writes the table store first and the vector store second, so a
// failed embedding or vector write leaves records without vectors. Running
// the Reembedder for a kind re-embeds every stored record, replaces the rows
// by id and rebuilds the index. The same run moves a dataset to a new
// embedding model.
package reembed
