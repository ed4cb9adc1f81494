package chunkalloc

// ComponentChunkAlloc identifies allocator errors
const ComponentChunkAlloc = "audiocore.chunkalloc"
