package mcpserver

// StoreConventions describes the on-disk rules an agent must follow when
// reading and writing folderdb documents.
const StoreConventions = `# folderdb store conventions

## Paths
- Paths are relative to the store root and use forward slashes: users/alice.json
- A leading slash is ignored. Paths that escape the root (..) are rejected.
- Names starting with a dot are hidden and never listed.
- Directory names have no extension; a name containing a dot is treated as a file.

## Documents
- .json, .yaml and .yml files are structured documents. Write them with JSON content;
  YAML files are encoded as YAML on disk.
- .js files (and any extra script extensions the server is configured with) are listed as
  documents and stored as raw text. Files with other extensions are stored verbatim but not listed.
- A structured document that fails to decode is returned as raw text with outcome "fallback".

## Writing
- write_document replaces content. It needs an existing parent directory unless parents=true.
- Pass if_match with the checksum from read_document to avoid overwriting concurrent edits.
- create_document never overwrites. On a collection path (no extension) it generates <uuid>.json.
- Writes are atomic: readers see the old or the new content, never a partial file.

## Deleting
- delete_path removes a document or a whole directory tree. Missing paths are not an error.
- The store root cannot be deleted.

## Searching
- search_documents takes a jq expression evaluated against each document in one directory.
- A document matches when the first result is neither null nor false.
- Examples: .status == "open"   (.tags // []) | index("urgent")   .age > 30
`
