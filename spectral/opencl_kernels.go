package spectral

// kernelSource holds every device kernel. Buffers are float2 (re, im) in
// row-major N×N order; 2D kernels are launched over (i, j).
const kernelSource = `
inline float wavenumber(int m, int N, float scalar) {
    return scalar * ((float)m - (float)N * (float)(2 * m >= N));
}

__kernel void add(__global float2* buffer, const float scalar) {
    buffer[get_global_id(0)].x += scalar;
}

__kernel void scale(__global float2* buffer, const float s) {
    int idx = get_global_id(0);
    buffer[idx] = buffer[idx] * s;
}

__kernel void real_part(__global float2* buffer) {
    buffer[get_global_id(0)].y = 0.0f;
}

// out = sign * i * k_i * in
__kernel void diff_x(__global const float2* buffer_in, __global float2* buffer_out,
                     const int N, const float scalar, const float sign) {
    int i = get_global_id(0);
    int j = get_global_id(1);
    float2 v = buffer_in[i * N + j];
    float freq = sign * wavenumber(i, N, scalar);
    buffer_out[i * N + j] = (float2)(-v.y * freq, v.x * freq);
}

// out = i * k_j * in
__kernel void diff_y(__global const float2* buffer_in, __global float2* buffer_out,
                     const int N, const float scalar) {
    int i = get_global_id(0);
    int j = get_global_id(1);
    float2 v = buffer_in[i * N + j];
    float freq = wavenumber(j, N, scalar);
    buffer_out[i * N + j] = (float2)(-v.y * freq, v.x * freq);
}

__kernel void inv_mlap(__global const float2* buffer_in, __global float2* buffer_out,
                       const int N, const float scalar) {
    int i = get_global_id(0);
    int j = get_global_id(1);
    float ki = wavenumber(i, N, scalar);
    float kj = wavenumber(j, N, scalar);
    float s = ki * ki + kj * kj + (float)((i == 0) && (j == 0));
    buffer_out[i * N + j] = buffer_in[i * N + j] / s;
}

__kernel void diffuse(__global float2* buffer, const int N, const float scalar,
                      const float nu, const float dt) {
    int i = get_global_id(0);
    int j = get_global_id(1);
    float ki = wavenumber(i, N, scalar);
    float kj = wavenumber(j, N, scalar);
    buffer[i * N + j] = buffer[i * N + j] * exp(-nu * (ki * ki + kj * kj) * dt);
}

inline int wrap(int m, int N) {
    m = m % N;
    return m < 0 ? m + N : m;
}

__kernel void advection(__global const float2* w_in, __global float2* w_out,
                        __global const float2* ux, __global const float2* uy,
                        const int N, const float L, const float dt) {
    int i = get_global_id(0);
    int j = get_global_id(1);
    int idx = i * N + j;

    float ci = (float)i - dt * ux[idx].x * (float)N / L;
    float cj = (float)j - dt * uy[idx].x * (float)N / L;
    float fi = floor(ci);
    float fj = floor(cj);
    float di = ci - fi;
    float dj = cj - fj;
    int i0 = wrap((int)fi, N);
    int j0 = wrap((int)fj, N);
    int i1 = i0 + 1 == N ? 0 : i0 + 1;
    int j1 = j0 + 1 == N ? 0 : j0 + 1;

    float s = 0.0f;
    s += (1 - di) * (1 - dj) * w_in[i0 * N + j0].x;
    s += (1 - di) *      dj  * w_in[i0 * N + j1].x;
    s +=      di  * (1 - dj) * w_in[i1 * N + j0].x;
    s +=      di  *      dj  * w_in[i1 * N + j1].x;

    w_out[idx] = (float2)(s, 0.0f);
}

// One Stockham radix-2 pass over a batch of lines. Work item (i, b) handles
// butterfly i of line b; lines start at b*dist and step by stride. Running
// p = 1, 2, ..., n/2 leaves the transform in natural order.
__kernel void fft_radix2(__global const float2* x, __global float2* y,
                         const int n, const int p, const int stride,
                         const int dist, const float sign) {
    int i = get_global_id(0);
    int b = get_global_id(1);
    int t = n >> 1;
    int k = i & (p - 1);
    int base = b * dist;

    float2 u0 = x[base + i * stride];
    float2 v = x[base + (i + t) * stride];
    float a = sign * M_PI_F * (float)k / (float)p;
    float c = cos(a);
    float s = sin(a);
    float2 u1 = (float2)(v.x * c - v.y * s, v.x * s + v.y * c);

    int j = (i << 1) - k;
    y[base + j * stride] = u0 + u1;
    y[base + (j + p) * stride] = u0 - u1;
}
`

// kernelNames lists the entry points created from kernelSource.
var kernelNames = []string{
	"add",
	"scale",
	"real_part",
	"diff_x",
	"diff_y",
	"inv_mlap",
	"diffuse",
	"advection",
	"fft_radix2",
}
