// Package biz implements the question-answering pipeline over the book:
// parsing and chunking at ingestion time, embedding-strategy management,
// vector retrieval, cross-encoder reranking, grounded answer generation
// with citations, session handling and cached chapter transforms.
package biz
