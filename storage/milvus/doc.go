// Package milvus implements storage.VectorStore on a Milvus server.
//
// Each record kind is stored in its own collection with a VARCHAR primary
// key (the embedding ID), a float vector field and the display fields
// returned by search. Adds are upserts, so re-ingesting a record replaces
// its row. CreateIndex builds an AUTOINDEX with the cosine metric and loads
// the collection.
package milvus
